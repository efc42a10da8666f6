package transport

import (
	"bufio"
	"io"

	"github.com/howard-nolan/ai-proxy/aiproxyerr"
)

// maxLineBufferBytes bounds how much unterminated data LineStream will
// buffer while waiting for a '\n', so a misbehaving upstream can't grow
// the buffer without bound.
const maxLineBufferBytes = 2 * 1024 * 1024

// LineStream turns a byte stream into a sequence of newline-delimited
// lines with the trailing '\r' (if present) trimmed, mirroring the
// original core's LineStream::poll_next state machine: it buffers bytes
// until it sees '\n', emits everything before it, and — on EOF — flushes
// a final unterminated tail exactly once.
type LineStream struct {
	r           *bufio.Reader
	closer      io.Closer
	buf         []byte
	flushedTail bool
	provider    string
	done        bool
}

// NewLineStream wraps body (an HTTP response body) as a LineStream. The
// caller must eventually call Close.
func NewLineStream(body io.ReadCloser) *LineStream {
	return &LineStream{
		r:      bufio.NewReaderSize(body, 4096),
		closer: body,
	}
}

// Next returns the next framed line, or io.EOF once the stream (and any
// final unterminated tail) has been fully drained. A line that grows
// past maxLineBufferBytes without a terminator returns an
// sse_buffer_overflow ProviderError instead of buffering indefinitely.
func (s *LineStream) Next(provider string) (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		b, err := s.r.ReadByte()
		if err == nil {
			if b == '\n' {
				line := trimLineEnding(s.buf)
				s.buf = s.buf[:0]
				return line, nil
			}
			s.buf = append(s.buf, b)
			if len(s.buf) > maxLineBufferBytes {
				s.done = true
				return "", aiproxyerr.ProviderErr(provider, "sse_buffer_overflow", "SSE line exceeded maximum buffer size")
			}
			continue
		}

		if err == io.EOF {
			s.done = true
			if len(s.buf) == 0 || s.flushedTail {
				return "", io.EOF
			}
			s.flushedTail = true
			line := trimLineEnding(s.buf)
			s.buf = nil
			return line, nil
		}

		s.done = true
		return "", aiproxyerr.Io(err)
	}
}

// Close releases the underlying response body.
func (s *LineStream) Close() error {
	return s.closer.Close()
}

func trimLineEnding(b []byte) string {
	n := len(b)
	if n > 0 && b[n-1] == '\n' {
		n--
	}
	if n > 0 && b[n-1] == '\r' {
		n--
	}
	return string(b[:n])
}
