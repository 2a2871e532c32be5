package issuance

import (
	"context"
	"testing"
	"time"

	"oid4vci-issuer/pkg/openid4vci"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractNonceProbeOrder(t *testing.T) {
	t.Run("top-level c_nonce wins over proof jwt nonce claim", func(t *testing.T) {
		jwt := buildProofJWT(t, map[string]any{"alg": "ES256"}, map[string]any{"nonce": "from-jwt"})
		request := &CredentialRequest{
			CNonce: "top-level",
			Proof:  &openid4vci.Proof{ProofType: "jwt", JWT: jwt},
		}
		nonce, err := extractNonce(request)
		require.NoError(t, err)
		assert.Equal(t, "top-level", nonce)
	})

	t.Run("falls back to proof.c_nonce over proof jwt nonce claim", func(t *testing.T) {
		jwt := buildProofJWT(t, map[string]any{"alg": "ES256"}, map[string]any{"nonce": "from-jwt"})
		request := &CredentialRequest{
			Proof: &openid4vci.Proof{ProofType: "jwt", JWT: jwt, CNonce: "from-proof"},
		}
		nonce, err := extractNonce(request)
		require.NoError(t, err)
		assert.Equal(t, "from-proof", nonce)
	})

	t.Run("falls back to decoded proof jwt nonce claim", func(t *testing.T) {
		jwt := buildProofJWT(t, map[string]any{"alg": "ES256"}, map[string]any{"nonce": "from-jwt"})
		request := &CredentialRequest{
			Proof: &openid4vci.Proof{ProofType: "jwt", JWT: jwt},
		}
		nonce, err := extractNonce(request)
		require.NoError(t, err)
		assert.Equal(t, "from-jwt", nonce)
	})

	t.Run("missing nonce everywhere fails MissingNonce", func(t *testing.T) {
		jwt := buildProofJWT(t, map[string]any{"alg": "ES256"}, map[string]any{})
		request := &CredentialRequest{
			Proof: &openid4vci.Proof{ProofType: "jwt", JWT: jwt},
		}
		_, err := extractNonce(request)
		require.Error(t, err)
	})
}

func TestFindSessionForRequest(t *testing.T) {
	tracer := newTestTracer(t)
	store := newFakeSessionStore()
	resolver := NewRequestResolver(testLog(), tracer, store)

	session := testSession("issuer-1", []string{"deg"})
	require.NoError(t, store.Create(context.Background(), session))

	request := &CredentialRequest{CNonce: session.CNonce}
	found, err := resolver.FindSessionForRequest(context.Background(), session.IssuerID, request)
	require.NoError(t, err)
	assert.Equal(t, session.ID, found.ID)
}

func TestFindSessionForRequestMissingNonce(t *testing.T) {
	tracer := newTestTracer(t)
	store := newFakeSessionStore()
	resolver := NewRequestResolver(testLog(), tracer, store)

	_, err := resolver.FindSessionForRequest(context.Background(), "issuer-1", &CredentialRequest{})
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeMissingNonce))
}

func TestFindSessionForRequestNotFound(t *testing.T) {
	tracer := newTestTracer(t)
	store := newFakeSessionStore()
	resolver := NewRequestResolver(testLog(), tracer, store)

	_, err := resolver.FindSessionForRequest(context.Background(), "issuer-1", &CredentialRequest{CNonce: "nonexistent"})
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeNotFound))
}

func TestValidateForCredentialHappyPath(t *testing.T) {
	tracer := newTestTracer(t)
	store := newFakeSessionStore()
	resolver := NewRequestResolver(testLog(), tracer, store)

	session := testSession("issuer-1", []string{"deg"})
	request := &CredentialRequest{
		CNonce: session.CNonce,
		Proof:  &openid4vci.Proof{ProofType: "jwt", JWT: "header.claims.sig"},
	}

	err := resolver.ValidateForCredential(context.Background(), session, request, time.Now())
	require.NoError(t, err)
}

// TestValidateForCredentialExpiredNonce is end-to-end scenario 2: an
// expired c_nonce fails NonceExpired without mutating session state.
func TestValidateForCredentialExpiredNonce(t *testing.T) {
	tracer := newTestTracer(t)
	store := newFakeSessionStore()
	resolver := NewRequestResolver(testLog(), tracer, store)

	session := testSession("issuer-1", []string{"deg"})
	session.CNonceExpiresAt = time.Now().Add(-1 * time.Second)
	request := &CredentialRequest{
		CNonce: session.CNonce,
		Proof:  &openid4vci.Proof{ProofType: "jwt", JWT: "header.claims.sig"},
	}

	originalState := session.State
	err := resolver.ValidateForCredential(context.Background(), session, request, time.Now())
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeNonceExpired))
	assert.Equal(t, originalState, session.State)
}

func TestValidateForCredentialMissingProof(t *testing.T) {
	tracer := newTestTracer(t)
	store := newFakeSessionStore()
	resolver := NewRequestResolver(testLog(), tracer, store)

	session := testSession("issuer-1", []string{"deg"})
	request := &CredentialRequest{CNonce: session.CNonce}

	err := resolver.ValidateForCredential(context.Background(), session, request, time.Now())
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeMissingProof))
}

func TestValidateForCredentialNonceMismatch(t *testing.T) {
	tracer := newTestTracer(t)
	store := newFakeSessionStore()
	resolver := NewRequestResolver(testLog(), tracer, store)

	session := testSession("issuer-1", []string{"deg"})
	request := &CredentialRequest{
		CNonce: "a-different-nonce",
		Proof:  &openid4vci.Proof{ProofType: "jwt", JWT: "header.claims.sig"},
	}

	err := resolver.ValidateForCredential(context.Background(), session, request, time.Now())
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeNonceMismatch))
}

func TestValidateForCredentialInvalidState(t *testing.T) {
	tracer := newTestTracer(t)
	store := newFakeSessionStore()
	resolver := NewRequestResolver(testLog(), tracer, store)

	session := testSession("issuer-1", []string{"deg"})
	session.State = StateOfferCreated
	request := &CredentialRequest{
		CNonce: session.CNonce,
		Proof:  &openid4vci.Proof{ProofType: "jwt", JWT: "header.claims.sig"},
	}

	err := resolver.ValidateForCredential(context.Background(), session, request, time.Now())
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeInvalidState))
}
