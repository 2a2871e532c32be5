package didkey

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/multiformats/go-multibase"
	"github.com/stretchr/testify/assert"
)

func encodeEd25519Multikey(t *testing.T, pub ed25519.PublicKey) string {
	t.Helper()
	buf := append([]byte{0xed, 0x01}, pub...)
	encoded, err := multibase.Encode(multibase.Base58BTC, buf)
	assert.NoError(t, err)
	return encoded
}

func TestCanResolveLocally(t *testing.T) {
	assert.True(t, CanResolveLocally("did:key:z6MkiTest#key-1"))
	assert.True(t, CanResolveLocally("did:jwk:eyJ..."))
	assert.True(t, CanResolveLocally("z6MkiTest"))
	assert.False(t, CanResolveLocally("did:web:example.com#key-1"))
}

func TestLocalResolverResolveEd25519DidKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	assert.NoError(t, err)
	multikey := encodeEd25519Multikey(t, pub)

	resolver := NewLocalResolver()
	resolved, err := resolver.ResolveEd25519("did:key:" + multikey + "#" + multikey)
	assert.NoError(t, err)
	assert.Equal(t, pub, resolved)
}

func TestLocalResolverRejectsUnsupportedFormat(t *testing.T) {
	resolver := NewLocalResolver()
	_, err := resolver.ResolveEd25519("did:web:example.com#key-1")
	assert.Error(t, err)
}

func TestStaticResolver(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	assert.NoError(t, err)

	resolver := NewStaticResolver()
	resolver.AddKey("did:example:alice#key-1", pub)

	resolved, err := resolver.ResolveEd25519("did:example:alice#key-1")
	assert.NoError(t, err)
	assert.Equal(t, pub, resolved)

	_, err = resolver.ResolveEd25519("did:example:bob#key-1")
	assert.Error(t, err)
}

func TestMultiResolverFallsThrough(t *testing.T) {
	empty := NewStaticResolver()
	pub, _, err := ed25519.GenerateKey(nil)
	assert.NoError(t, err)

	populated := NewStaticResolver()
	populated.AddKey("did:example:alice#key-1", pub)

	multi := NewMultiResolver(empty, populated)
	resolved, err := multi.ResolveEd25519("did:example:alice#key-1")
	assert.NoError(t, err)
	assert.Equal(t, pub, resolved)
}

func TestExtractDIDAndFragment(t *testing.T) {
	assert.Equal(t, "did:key:z6Mki", ExtractDIDFromVerificationMethod("did:key:z6Mki#key-1"))
	assert.Equal(t, "key-1", ExtractFragmentFromVerificationMethod("did:key:z6Mki#key-1"))
	assert.Equal(t, "", ExtractFragmentFromVerificationMethod("did:key:z6Mki"))
}

func TestJWKToEd25519(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	assert.NoError(t, err)

	jwk := map[string]any{
		"kty": "OKP",
		"crv": "Ed25519",
		"x":   base64.RawURLEncoding.EncodeToString(pub),
	}

	resolved, err := JWKToEd25519(jwk)
	assert.NoError(t, err)
	assert.Equal(t, pub, resolved)
}

func TestJWKToEd25519RejectsWrongKty(t *testing.T) {
	_, err := JWKToEd25519(map[string]any{"kty": "EC", "crv": "Ed25519"})
	assert.Error(t, err)
}
