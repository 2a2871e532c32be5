package issuance

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"oid4vci-issuer/pkg/logger"
	"oid4vci-issuer/pkg/signing"
	"oid4vci-issuer/pkg/trace"
)

// DefaultW3cCredentialService is the built-in W3cCredentialService adapter
// for JwtVc SignOptions: it wraps the mapper's payload in a VC-JWT, signed
// with the first algorithm the signer's key material supports, imprinting
// credentialSubject.id with the holder's binding when the mapper left it
// unset.
//
// The compact JWS is assembled by hand rather than through jwtv5's
// Token.SignedString, since Signer abstracts over software and PKCS#11
// backends behind Sign(ctx, data) rather than exposing a crypto.PrivateKey
// jwt-go's built-in signing methods could consume directly.
type DefaultW3cCredentialService struct {
	log    *logger.Log
	tracer *trace.Tracer
}

// NewDefaultW3cCredentialService creates a DefaultW3cCredentialService.
func NewDefaultW3cCredentialService(log *logger.Log, tracer *trace.Tracer) *DefaultW3cCredentialService {
	return &DefaultW3cCredentialService{log: log.New("w3c_credential_service"), tracer: tracer}
}

// IssueW3C signs opts.Payload as a VC-JWT. LdpVc (Data-Integrity proofs) is
// not produced by this default adapter; a host that offers ldp_vc must
// supply its own W3cCredentialService.
func (s *DefaultW3cCredentialService) IssueW3C(ctx context.Context, signer signing.Signer, opts *SignOptions, binding HolderBinding) (*SignResult, error) {
	ctx, span := s.tracer.Start(ctx, "issuance:w3c:issue_w3c")
	defer span.End()

	if opts.Format != SignOptionsJwtVc {
		return nil, newError(ErrCodeFormatMismatch, errFormatMismatch)
	}

	algorithms := signer.SupportedAlgorithms()
	if len(algorithms) == 0 {
		return nil, newError(ErrCodeNoSupportedAlgorithm, errNoSupportedAlgorithm)
	}
	alg := algorithms[0]

	payload := imprintCredentialSubject(opts.Payload, binding)

	claims := map[string]any{
		"vc":  payload,
		"iat": time.Now().Unix(),
	}
	if opts.VerificationMethod != "" {
		claims["iss"] = opts.VerificationMethod
	}
	if sub := holderSubject(binding); sub != "" {
		claims["sub"] = sub
	}

	header := map[string]any{
		"alg": alg,
		"typ": "JWT",
		"kid": signer.KeyID(),
	}

	signingInput, err := compactSigningInput(header, claims)
	if err != nil {
		return nil, newError(ErrCodeSignerProducedNothing, err)
	}

	signature, err := signer.Sign(ctx, []byte(signingInput))
	if err != nil {
		return nil, newError(ErrCodeSignerProducedNothing, err)
	}

	compact := fmt.Sprintf("%s.%s", signingInput, base64.RawURLEncoding.EncodeToString(signature))

	return &SignResult{Format: string(FormatJwtVcJson), Credential: compact}, nil
}

// compactSigningInput renders the base64url(header) + "." + base64url(payload)
// segment a JWS signature is computed over.
func compactSigningInput(header, claims map[string]any) (string, error) {
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	claimsBytes, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s.%s",
		base64.RawURLEncoding.EncodeToString(headerBytes),
		base64.RawURLEncoding.EncodeToString(claimsBytes),
	), nil
}

// imprintCredentialSubject sets credentialSubject.id from the holder
// binding when the mapper left it unset, never overwriting an existing
// value.
func imprintCredentialSubject(payload map[string]any, binding HolderBinding) map[string]any {
	if payload == nil {
		return payload
	}

	subjectID := holderSubject(binding)
	if subjectID == "" {
		return payload
	}

	switch subject := payload["credentialSubject"].(type) {
	case map[string]any:
		if _, ok := subject["id"]; !ok {
			subject["id"] = subjectID
		}
	case []any:
		if len(subject) > 0 {
			if first, ok := subject[0].(map[string]any); ok {
				if _, ok := first["id"]; !ok {
					first["id"] = subjectID
				}
			}
		}
	}

	return payload
}

// holderSubject derives the subject identifier from a holder binding: the
// DID for a did-bound holder, empty for a bare jwk (no stable identifier to
// imprint).
func holderSubject(binding HolderBinding) string {
	if binding.Method == BindingMethodDID {
		return binding.DIDURL
	}
	return ""
}
