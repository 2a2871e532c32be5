package issuance

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"oid4vci-issuer/pkg/logger"
	"oid4vci-issuer/pkg/openid4vci"
	"oid4vci-issuer/pkg/trace"

	"github.com/stretchr/testify/require"
)

// newTestTracer builds a tracer for tests that discards spans rather than
// dialing a collector.
func newTestTracer(t *testing.T) *trace.Tracer {
	t.Helper()
	tracer, err := trace.NewForTesting(context.Background(), "issuance-test", logger.NewSimple("test"))
	require.NoError(t, err)
	return tracer
}

func testLog() *logger.Log {
	return logger.NewSimple("test")
}

func boolPtr(b bool) *bool { return &b }

// b64url encodes v as a raw-base64url JSON segment of a compact JWS.
func b64url(t *testing.T, v map[string]any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(data)
}

// buildProofJWT assembles a syntactically valid three-segment compact JWS
// carrying header and claims, with a placeholder signature segment. Every
// extraction path this package exercises (ExtractNonceClaim, ExtractJWK)
// decodes only the first two segments without verifying the signature.
func buildProofJWT(t *testing.T, header, claims map[string]any) string {
	t.Helper()
	return b64url(t, header) + "." + b64url(t, claims) + ".sig"
}

// sdJwtConfiguration builds a vc+sd-jwt issuer-supported configuration.
func sdJwtConfiguration(vct string) openid4vci.CredentialConfigurationsSupported {
	return openid4vci.CredentialConfigurationsSupported{
		Format: string(FormatSdJwtVc),
		VCT:    vct,
	}
}

// jwtVcConfiguration builds a jwt_vc_json issuer-supported configuration
// carrying the given credential types.
func jwtVcConfiguration(types ...string) openid4vci.CredentialConfigurationsSupported {
	return openid4vci.CredentialConfigurationsSupported{
		Format:               string(FormatJwtVcJson),
		CredentialDefinition: openid4vci.CredentialDefinition{Type: types},
	}
}

// mdocConfiguration builds an mso_mdoc issuer-supported configuration.
func mdocConfiguration(doctype string) openid4vci.CredentialConfigurationsSupported {
	return openid4vci.CredentialConfigurationsSupported{
		Format:  string(FormatMsoMdoc),
		Doctype: doctype,
	}
}

func testIssuer(configs map[string]openid4vci.CredentialConfigurationsSupported) *IssuerRecord {
	return &IssuerRecord{
		IssuerID:                          "issuer-1",
		CredentialConfigurationsSupported: configs,
	}
}

func testSession(issuerID string, offered []string) *IssuanceSession {
	return &IssuanceSession{
		ID:                 "session-1",
		IssuerID:           issuerID,
		CredentialOfferURI: "https://issuer.example/credential-offer/abc",
		CredentialOfferPayload: &openid4vci.CredentialOfferParameters{
			CredentialIssuer:           "https://issuer.example",
			CredentialConfigurationIDs: offered,
		},
		OfferedCredentials: offered,
		Version:            VersionDraft13,
		PreAuthorizedCode:  "pre-auth-code",
		State:              StateAccessTokenCreated,
		CNonce:             "nonce-1",
		CNonceExpiresAt:    time.Now().Add(5 * time.Minute),
		IssuedCredentials:  []string{},
	}
}
