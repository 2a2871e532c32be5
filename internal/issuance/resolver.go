package issuance

import (
	"context"
	"time"

	"oid4vci-issuer/pkg/logger"
	"oid4vci-issuer/pkg/openid4vci"
	"oid4vci-issuer/pkg/trace"
)

// SessionQuery selects a session by issuer and c_nonce. IssuerID is optional:
// a credential endpoint that is not issuer-scoped passes only CNonce, and
// relies on c_nonce uniqueness per issuer to resolve to a single row.
type SessionQuery struct {
	IssuerID string
	CNonce   string
}

// RequestResolver locates the session a credential request belongs to, and
// validates that session against the request before a signer ever runs.
type RequestResolver struct {
	log    *logger.Log
	tracer *trace.Tracer
	store  SessionStore
}

// NewRequestResolver creates a RequestResolver.
func NewRequestResolver(log *logger.Log, tracer *trace.Tracer, store SessionStore) *RequestResolver {
	return &RequestResolver{log: log.New("request_resolver"), tracer: tracer, store: store}
}

// FindSessionForRequest extracts a c_nonce from the request by probing, in
// order, the top-level c_nonce, proof.c_nonce, and the decoded proof JWT's
// nonce claim, then looks up the session carrying that nonce.
func (r *RequestResolver) FindSessionForRequest(ctx context.Context, issuerID string, request *CredentialRequest) (*IssuanceSession, error) {
	ctx, span := r.tracer.Start(ctx, "issuance:resolver:find_session_for_request")
	defer span.End()

	nonce, err := extractNonce(request)
	if err != nil {
		return nil, newError(ErrCodeMissingNonce, err)
	}

	session, err := r.store.FindSingleByQuery(ctx, SessionQuery{IssuerID: issuerID, CNonce: nonce})
	if err != nil {
		return nil, err
	}

	return session, nil
}

// extractNonce probes the request's nonce locations in order: top-level
// c_nonce, then proof.c_nonce, then the proof jwt's nonce claim.
func extractNonce(request *CredentialRequest) (string, error) {
	if request.CNonce != "" {
		return request.CNonce, nil
	}

	if request.Proof != nil && request.Proof.CNonce != "" {
		return request.Proof.CNonce, nil
	}

	if request.Proof != nil && request.Proof.JWT != "" {
		proofJWT := openid4vci.ProofJWTToken(request.Proof.JWT)
		if nonce, err := proofJWT.ExtractNonceClaim(); err == nil && nonce != "" {
			return nonce, nil
		}
	}

	return "", errNoNonceInRequest
}

// ValidateForCredential runs the post-lookup checks: the
// session must be in a state that accepts credential requests, a proof must
// be present, the extracted nonce must match the session's live c_nonce, and
// that nonce must not have expired.
func (r *RequestResolver) ValidateForCredential(ctx context.Context, session *IssuanceSession, request *CredentialRequest, now time.Time) error {
	_, span := r.tracer.Start(ctx, "issuance:resolver:validate_for_credential")
	defer span.End()

	switch session.State {
	case StateAccessTokenCreated, StateCredentialRequestReceived, StateCredentialsPartiallyIssued:
	default:
		return newError(ErrCodeInvalidState, errSessionNotInRequestableState)
	}

	if request.Proof == nil || request.Proof.JWT == "" {
		return newError(ErrCodeMissingProof, errMissingProof)
	}

	nonce, err := extractNonce(request)
	if err != nil {
		return newError(ErrCodeMissingNonce, err)
	}
	if session.CNonce == "" {
		return newError(ErrCodeNonceMismatch, errNonceNotSet)
	}
	if nonce != session.CNonce {
		return newError(ErrCodeNonceMismatch, errNonceMismatch)
	}
	if !session.CNonceExpiresAt.After(now) {
		return newError(ErrCodeNonceExpired, errNonceExpired)
	}

	return nil
}
