package issuance

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"oid4vci-issuer/pkg/openid4vci"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/multiformats/go-multibase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeEd25519Multikey(t *testing.T, pub ed25519.PublicKey) string {
	t.Helper()
	buf := append([]byte{0xed, 0x01}, pub...)
	encoded, err := multibase.Encode(multibase.Base58BTC, buf)
	require.NoError(t, err)
	return encoded
}

// TestExtractBindingDIDKey covers the kid branch resolved locally
// by pkg/didkey (did:key is self-contained, no external DidResolver
// needed).
func TestExtractBindingDIDKey(t *testing.T) {
	tracer := newTestTracer(t)
	extractor := NewHolderBindingExtractor(testLog(), tracer, nil)

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	multikey := encodeEd25519Multikey(t, pub)
	kid := "did:key:" + multikey + "#" + multikey

	jwt := buildProofJWT(t, map[string]any{"alg": "EdDSA", "kid": kid}, map[string]any{"nonce": "n"})
	request := &CredentialRequest{Proof: &openid4vci.Proof{ProofType: "jwt", JWT: jwt}}

	binding, err := extractor.ExtractBinding(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, BindingMethodDID, binding.Method)
	assert.Equal(t, kid, binding.DIDURL)
	assert.Equal(t, pub, binding.Key)
}

func TestExtractBindingJWK(t *testing.T) {
	tracer := newTestTracer(t)
	extractor := NewHolderBindingExtractor(testLog(), tracer, nil)

	jwt := buildProofJWT(t, map[string]any{
		"alg": "ES256",
		"jwk": map[string]any{
			"kty": "EC",
			"crv": "P-256",
			"x":   "AQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQEBAQE",
			"y":   "AgICAgICAgICAgICAgICAgICAgICAgICAgICAgICAgI",
		},
	}, map[string]any{"nonce": "n"})
	request := &CredentialRequest{Proof: &openid4vci.Proof{ProofType: "jwt", JWT: jwt}}

	binding, err := extractor.ExtractBinding(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, BindingMethodJWK, binding.Method)
	require.NotNil(t, binding.JWK)
	assert.Equal(t, "EC", binding.JWK.KTY)
	require.NotNil(t, binding.Key)
	ecdsaKey, ok := binding.Key.(*ecdsa.PublicKey)
	require.True(t, ok)
	assert.Equal(t, elliptic.P256(), ecdsaKey.Curve)
}

func TestExtractBindingUnsupportedKidScheme(t *testing.T) {
	tracer := newTestTracer(t)
	extractor := NewHolderBindingExtractor(testLog(), tracer, nil)

	jwt := buildProofJWT(t, map[string]any{"alg": "ES256", "kid": "https://example.com/keys/1"}, map[string]any{})
	request := &CredentialRequest{Proof: &openid4vci.Proof{ProofType: "jwt", JWT: jwt}}

	_, err := extractor.ExtractBinding(context.Background(), request)
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeUnsupportedKidScheme))
}

func TestExtractBindingAmbiguousKid(t *testing.T) {
	tracer := newTestTracer(t)
	extractor := NewHolderBindingExtractor(testLog(), tracer, nil)

	jwt := buildProofJWT(t, map[string]any{"alg": "ES256", "kid": "did:example:alice"}, map[string]any{})
	request := &CredentialRequest{Proof: &openid4vci.Proof{ProofType: "jwt", JWT: jwt}}

	_, err := extractor.ExtractBinding(context.Background(), request)
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeAmbiguousKid))
}

// fakeDidResolver models an external DidResolver collaborator for
// non-self-contained DID methods, the path everything other than did:key
// and did:jwk takes.
type fakeDidResolver struct {
	key crypto.PublicKey
	err error
}

func (f *fakeDidResolver) ResolveVerificationMethod(_ context.Context, _ string) (crypto.PublicKey, error) {
	return f.key, f.err
}

// TestExtractBindingRemoteDIDMethod covers the non-self-contained DID
// method path, delegated to the injected DidResolver.
func TestExtractBindingRemoteDIDMethod(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	tracer := newTestTracer(t)
	extractor := NewHolderBindingExtractor(testLog(), tracer, &fakeDidResolver{key: pub})

	kid := "did:web:issuer.example#key-1"
	jwt := buildProofJWT(t, map[string]any{"alg": "EdDSA", "kid": kid}, map[string]any{"nonce": "n"})
	request := &CredentialRequest{Proof: &openid4vci.Proof{ProofType: "jwt", JWT: jwt}}

	binding, err := extractor.ExtractBinding(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, BindingMethodDID, binding.Method)
	assert.Equal(t, kid, binding.DIDURL)
	assert.Equal(t, pub, binding.Key)
}

// TestJWTProofVerifier exercises the built-in ProofVerifier over a really
// signed ES256 proof: the signature, audience, and nonce checks all run.
func TestJWTProofVerifier(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodES256, jwtv5.MapClaims{
		"aud":   "https://issuer.example",
		"iat":   time.Now().Add(-time.Minute).Unix(),
		"nonce": "nonce-1",
	})
	token.Header["typ"] = "openid4vci-proof+jwt"
	token.Header["kid"] = "did:example:alice#key-1"

	signed, err := token.SignedString(key)
	require.NoError(t, err)

	verifier := &JWTProofVerifier{Audience: "https://issuer.example"}

	err = verifier.VerifyProof(context.Background(), signed, &key.PublicKey, "nonce-1")
	assert.NoError(t, err)

	err = verifier.VerifyProof(context.Background(), signed, &key.PublicKey, "a-different-nonce")
	assert.Error(t, err)

	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	err = verifier.VerifyProof(context.Background(), signed, &other.PublicKey, "nonce-1")
	assert.Error(t, err)
}
