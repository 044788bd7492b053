package identity

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// token builds an unsigned three-part credential around the given payload.
func token(t *testing.T, payload map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(body) + ".sig"
}

func TestDecodeExtractsIdentityTriple(t *testing.T) {
	bridge := New("portal-client")

	claim, ok := bridge.Decode(token(t, map[string]any{
		"name":    "Budi Santoso",
		"email":   "budi@example.com",
		"picture": "https://lh3.example.com/photo.jpg",
		"iss":     "https://accounts.example.com",
	}))

	require.True(t, ok)
	assert.Equal(t, "Budi Santoso", claim.Name)
	assert.Equal(t, "budi@example.com", claim.Email)
	assert.Equal(t, "https://lh3.example.com/photo.jpg", claim.Picture)
}

func TestDecodeMalformedCredentialFallsBackSilently(t *testing.T) {
	bridge := New("portal-client")

	cases := map[string]string{
		"empty":             "",
		"not a token":       "garbage",
		"two segments":      "abc.def",
		"bad base64":        "a.!!!.c",
		"payload not json":  "h." + base64.RawURLEncoding.EncodeToString([]byte("not-json")) + ".s",
		"empty payload":     token(t, map[string]any{"iss": "issuer-only"}),
	}

	for name, cred := range cases {
		claim, ok := bridge.Decode(cred)
		assert.False(t, ok, name)
		assert.Zero(t, claim, name)
	}
}

func TestDecodeDoesNotVerifySignature(t *testing.T) {
	// A forged signature still decodes: this boundary is prefill only.
	bridge := New("portal-client")
	forged := token(t, map[string]any{"name": "Mallory", "email": "mallory@example.com"})

	_, ok := bridge.Decode(forged)
	assert.True(t, ok, "decode must not depend on signature validity")
}
