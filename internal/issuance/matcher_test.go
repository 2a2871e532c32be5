package issuance

import (
	"context"
	"testing"

	"oid4vci-issuer/pkg/openid4vci"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchFormatSpecificPredicates(t *testing.T) {
	tracer := newTestTracer(t)
	matcher := NewCredentialMatcher(testLog(), tracer)

	tests := []struct {
		name      string
		configs   map[string]openid4vci.CredentialConfigurationsSupported
		offered   []string
		request   *CredentialRequest
		wantID    string
		wantError ErrorCode
	}{
		{
			name:    "jwt_vc_json type set match",
			configs: map[string]openid4vci.CredentialConfigurationsSupported{"deg": jwtVcConfiguration("VerifiableCredential", "UniversityDegree")},
			offered: []string{"deg"},
			request: &CredentialRequest{
				Format: FormatJwtVcJson,
				Types:  []string{"UniversityDegree", "VerifiableCredential"},
			},
			wantID: "deg",
		},
		{
			name:    "jwt_vc_json-ld uses credential_definition.types",
			configs: map[string]openid4vci.CredentialConfigurationsSupported{"deg": {Format: string(FormatJwtVcJsonLd), CredentialDefinition: openid4vci.CredentialDefinition{Type: []string{"A", "B"}}}},
			offered: []string{"deg"},
			request: &CredentialRequest{
				Format:               FormatJwtVcJsonLd,
				CredentialDefinition: &CredentialDefinitionRequest{Types: []string{"B", "A"}},
			},
			wantID: "deg",
		},
		{
			name:    "ldp_vc same rule as jwt_vc_json-ld",
			configs: map[string]openid4vci.CredentialConfigurationsSupported{"deg": {Format: string(FormatLdpVc), CredentialDefinition: openid4vci.CredentialDefinition{Type: []string{"A"}}}},
			offered: []string{"deg"},
			request: &CredentialRequest{
				Format:               FormatLdpVc,
				CredentialDefinition: &CredentialDefinitionRequest{Types: []string{"A"}},
			},
			wantID: "deg",
		},
		{
			name:    "vc+sd-jwt matches on vct",
			configs: map[string]openid4vci.CredentialConfigurationsSupported{"sd": sdJwtConfiguration("UniversityDegree_SD")},
			offered: []string{"sd"},
			request: &CredentialRequest{
				Format: FormatSdJwtVc,
				VCT:    "UniversityDegree_SD",
			},
			wantID: "sd",
		},
		{
			name:    "mso_mdoc matches on doctype",
			configs: map[string]openid4vci.CredentialConfigurationsSupported{"md": mdocConfiguration("org.iso.18013.5.1.mDL")},
			offered: []string{"md"},
			request: &CredentialRequest{
				Format:  FormatMsoMdoc,
				Doctype: "org.iso.18013.5.1.mDL",
			},
			wantID: "md",
		},
		{
			name:    "format gating predicate rejects mismatched format even with matching vct",
			configs: map[string]openid4vci.CredentialConfigurationsSupported{"sd": sdJwtConfiguration("UniversityDegree_SD")},
			offered: []string{"sd"},
			request: &CredentialRequest{
				Format:  FormatMsoMdoc,
				Doctype: "does-not-matter",
			},
			wantError: ErrCodeNoMatchingOffer,
		},
		{
			name:    "type set mismatch by count fails even with overlapping elements",
			configs: map[string]openid4vci.CredentialConfigurationsSupported{"deg": jwtVcConfiguration("A", "B")},
			offered: []string{"deg"},
			request: &CredentialRequest{
				Format: FormatJwtVcJson,
				Types:  []string{"A"},
			},
			wantError: ErrCodeNoMatchingOffer,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			issuer := testIssuer(tc.configs)
			session := testSession(issuer.IssuerID, tc.offered)

			got, err := matcher.Match(context.Background(), issuer, session, tc.request)
			if tc.wantError != "" {
				require.Error(t, err)
				assert.True(t, HasCode(err, tc.wantError))
				return
			}
			require.NoError(t, err)
			require.Len(t, got, 1)
			_, ok := got[tc.wantID]
			assert.True(t, ok)
		})
	}
}

func TestMatchCredentialIdentifierBypassesFormatMatching(t *testing.T) {
	tracer := newTestTracer(t)
	matcher := NewCredentialMatcher(testLog(), tracer)

	issuer := testIssuer(map[string]openid4vci.CredentialConfigurationsSupported{
		"deg": jwtVcConfiguration("UniversityDegree"),
	})
	session := testSession(issuer.IssuerID, []string{"deg"})

	request := &CredentialRequest{CredentialIdentifier: "deg"}
	got, err := matcher.Match(context.Background(), issuer, session, request)
	require.NoError(t, err)
	require.Len(t, got, 1)
	_, ok := got["deg"]
	assert.True(t, ok)
}

func TestMatchCredentialIdentifierNotOffered(t *testing.T) {
	tracer := newTestTracer(t)
	matcher := NewCredentialMatcher(testLog(), tracer)

	issuer := testIssuer(map[string]openid4vci.CredentialConfigurationsSupported{
		"deg": jwtVcConfiguration("UniversityDegree"),
	})
	session := testSession(issuer.IssuerID, []string{"deg"})

	request := &CredentialRequest{CredentialIdentifier: "unknown"}
	_, err := matcher.Match(context.Background(), issuer, session, request)
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeNotOffered))
}

// TestMatchFiltersAlreadyIssued is end-to-end scenario 4: a configuration
// already present in issued_credentials is filtered out of the candidate
// set, so re-requesting it fails NoMatchingOffer rather than re-issuing it.
func TestMatchFiltersAlreadyIssued(t *testing.T) {
	tracer := newTestTracer(t)
	matcher := NewCredentialMatcher(testLog(), tracer)

	issuer := testIssuer(map[string]openid4vci.CredentialConfigurationsSupported{
		"A": jwtVcConfiguration("TypeA"),
		"B": jwtVcConfiguration("TypeB"),
	})
	session := testSession(issuer.IssuerID, []string{"A", "B"})
	session.IssuedCredentials = []string{"A"}

	_, err := matcher.Match(context.Background(), issuer, session, &CredentialRequest{Format: FormatJwtVcJson, Types: []string{"TypeA"}})
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeNoMatchingOffer))

	got, err := matcher.Match(context.Background(), issuer, session, &CredentialRequest{Format: FormatJwtVcJson, Types: []string{"TypeB"}})
	require.NoError(t, err)
	_, ok := got["B"]
	assert.True(t, ok)
}

// TestMatchPicksFirstDeterministically: when more than
// one offered configuration matches, the first in offer order wins, and
// repeated calls with identical inputs are idempotent.
func TestMatchPicksFirstDeterministically(t *testing.T) {
	tracer := newTestTracer(t)
	matcher := NewCredentialMatcher(testLog(), tracer)

	issuer := testIssuer(map[string]openid4vci.CredentialConfigurationsSupported{
		"first":  jwtVcConfiguration("SameType"),
		"second": jwtVcConfiguration("SameType"),
	})
	session := testSession(issuer.IssuerID, []string{"first", "second"})
	request := &CredentialRequest{Format: FormatJwtVcJson, Types: []string{"SameType"}}

	got1, err := matcher.Match(context.Background(), issuer, session, request)
	require.NoError(t, err)
	got2, err := matcher.Match(context.Background(), issuer, session, request)
	require.NoError(t, err)

	assert.Equal(t, got1, got2)
	_, ok := got1["first"]
	assert.True(t, ok)
}

func TestEqualAsSetsOrderIndependent(t *testing.T) {
	assert.True(t, equalAsSets([]string{"A", "B"}, []string{"B", "A"}))
	assert.False(t, equalAsSets([]string{"A", "B"}, []string{"A", "A"}))
	assert.False(t, equalAsSets([]string{"A"}, []string{"A", "B"}))
}
