package issuance

import (
	"context"
	"crypto"
	"fmt"
	"strings"

	"oid4vci-issuer/pkg/didkey"
	"oid4vci-issuer/pkg/logger"
	"oid4vci-issuer/pkg/openid4vci"
	"oid4vci-issuer/pkg/trace"
)

// DidResolver resolves verification methods for DID methods that are not
// self-contained (anything other than did:key/did:jwk, which pkg/didkey
// resolves in-process). Remote DID resolution is an external collaborator.
type DidResolver interface {
	ResolveVerificationMethod(ctx context.Context, verificationMethodID string) (crypto.PublicKey, error)
}

// ProofVerifier checks the wallet proof JWT's signature and claims against
// the holder key the binding extractor resolved. The JWS primitive itself is
// the host's concern; a nil verifier on ClientOptions disables in-process
// verification.
type ProofVerifier interface {
	VerifyProof(ctx context.Context, proofJWT string, key crypto.PublicKey, expectedNonce string) error
}

// JWTProofVerifier is the built-in ProofVerifier over the proof's compact
// JWS: it enforces the openid4vci-proof+jwt header profile, the audience,
// iat, and nonce claims, and the signature itself.
type JWTProofVerifier struct {
	// Audience is the credential issuer identifier the proof's aud claim
	// must carry. Empty skips the audience check.
	Audience string
}

// VerifyProof verifies proofJWT against key.
func (v *JWTProofVerifier) VerifyProof(_ context.Context, proofJWT string, key crypto.PublicKey, expectedNonce string) error {
	token := openid4vci.ProofJWTToken(proofJWT)
	return token.Verify(key, &openid4vci.VerifyProofOptions{
		Audience: v.Audience,
		CNonce:   expectedNonce,
	})
}

// HolderBindingExtractor parses the wallet's proof JWT header and extracts
// a holder binding.
type HolderBindingExtractor struct {
	log         *logger.Log
	tracer      *trace.Tracer
	didResolver DidResolver
}

// NewHolderBindingExtractor creates a HolderBindingExtractor. didResolver
// may be nil if every expected holder key uses a self-contained DID method.
func NewHolderBindingExtractor(log *logger.Log, tracer *trace.Tracer, didResolver DidResolver) *HolderBindingExtractor {
	return &HolderBindingExtractor{log: log.New("holder_binding_extractor"), tracer: tracer, didResolver: didResolver}
}

// ExtractBinding parses request.Proof.JWT's protected header and resolves
// the holder's public key, by kid (a DID with fragment) or by an inlined
// jwk.
func (e *HolderBindingExtractor) ExtractBinding(ctx context.Context, request *CredentialRequest) (HolderBinding, error) {
	ctx, span := e.tracer.Start(ctx, "issuance:binding:extract_binding")
	defer span.End()

	if request.Proof == nil || request.Proof.JWT == "" {
		return HolderBinding{}, newError(ErrCodeMissingProof, errMissingProof)
	}

	proofJWT := openid4vci.ProofJWTToken(request.Proof.JWT)
	jwk, err := proofJWT.ExtractJWK()
	if err != nil {
		return HolderBinding{}, newError(ErrCodeMissingProof, err)
	}

	if jwk.KID != "" {
		return e.extractDIDBinding(ctx, jwk.KID)
	}
	if jwk.KTY != "" {
		key, err := jwkPublicKey(jwk)
		if err != nil {
			return HolderBinding{}, newError(ErrCodeMissingProof, err)
		}
		return HolderBinding{Method: BindingMethodJWK, JWK: jwk, Key: key}, nil
	}

	return HolderBinding{}, newError(ErrCodeMissingProof, errNoProofJWK)
}

// jwkPublicKey extracts the crypto.PublicKey an inlined proof JWK encodes,
// trying ECDSA (kty=EC) then Ed25519 (kty=OKP), mirroring the did:jwk/did:key
// decode-by-kty shape pkg/didkey already uses for the kid branch.
func jwkPublicKey(jwk *openid4vci.JWK) (crypto.PublicKey, error) {
	raw := map[string]any{
		"kty": jwk.KTY,
		"crv": jwk.CRV,
		"x":   jwk.X,
		"y":   jwk.Y,
	}

	switch jwk.KTY {
	case "EC":
		return didkey.JWKToECDSA(raw)
	case "OKP":
		return didkey.JWKToEd25519(raw)
	default:
		return nil, fmt.Errorf("unsupported jwk kty: %s", jwk.KTY)
	}
}

// extractDIDBinding implements the kid branch: kid must start with did:
// and carry a #fragment; self-contained methods resolve locally, everything
// else goes to the injected DidResolver.
func (e *HolderBindingExtractor) extractDIDBinding(ctx context.Context, kid string) (HolderBinding, error) {
	if !strings.HasPrefix(kid, "did:") {
		return HolderBinding{}, newError(ErrCodeUnsupportedKidScheme, errUnsupportedKidScheme)
	}
	if didkey.ExtractFragmentFromVerificationMethod(kid) == "" {
		return HolderBinding{}, newError(ErrCodeAmbiguousKid, errAmbiguousKid)
	}

	var (
		key crypto.PublicKey
		err error
	)

	if didkey.CanResolveLocally(kid) {
		resolver := didkey.NewLocalResolver()
		if ecdsaKey, ecdsaErr := resolver.ResolveECDSA(kid); ecdsaErr == nil {
			key = ecdsaKey
		} else if ed25519Key, edErr := resolver.ResolveEd25519(kid); edErr == nil {
			key = ed25519Key
		} else {
			err = ecdsaErr
		}
	} else if e.didResolver != nil {
		key, err = e.didResolver.ResolveVerificationMethod(ctx, kid)
	} else {
		err = errUnsupportedKidScheme
	}

	if err != nil || key == nil {
		return HolderBinding{}, newError(ErrCodeMissingProof, err)
	}

	return HolderBinding{Method: BindingMethodDID, DIDURL: kid, Key: key}, nil
}
