package provider

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// decodeJSONBody decodes r's body into v, failing the test on error.
// Shared across the adapter test files that need to assert on the
// exact request body an adapter sent.
func decodeJSONBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r.Body).Decode(v))
}
