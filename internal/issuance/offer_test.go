package issuance

import (
	"context"
	"encoding/base64"
	"net/url"
	"testing"

	"oid4vci-issuer/pkg/openid4vci"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOfferHappyPathDraft13(t *testing.T) {
	tracer := newTestTracer(t)
	builder := NewOfferBuilder(testLog(), tracer)

	issuer := testIssuer(map[string]openid4vci.CredentialConfigurationsSupported{
		"UniversityDegree_SD": sdJwtConfiguration("UniversityDegree_SD"),
	})

	session, offerURI, err := builder.CreateOffer(
		context.Background(),
		issuer,
		[]string{"UniversityDegree_SD"},
		PreAuthCfg{},
		VersionDraft13,
		"https://issuer.example",
	)
	require.NoError(t, err)

	assert.Equal(t, StateOfferCreated, session.State)
	assert.NotEmpty(t, session.PreAuthorizedCode)
	assert.Nil(t, session.CredentialOfferPayloadV11)
	assert.Equal(t, []string{"UniversityDegree_SD"}, session.CredentialOfferPayload.CredentialConfigurationIDs)

	u, err := url.Parse(offerURI.String())
	require.NoError(t, err)
	assert.Equal(t, "openid-credential-offer", u.Scheme)
	assert.Equal(t, session.CredentialOfferURI, u.Query().Get("credential_offer_uri"))
}

// TestCreateOfferDraft11Projection is end-to-end scenario 5: draft-11
// offers persist a "credentials" projection with user_pin_required true
// and an empty tx_code object.
func TestCreateOfferDraft11Projection(t *testing.T) {
	tracer := newTestTracer(t)
	builder := NewOfferBuilder(testLog(), tracer)

	issuer := testIssuer(map[string]openid4vci.CredentialConfigurationsSupported{
		"X": jwtVcConfiguration("X"),
	})

	session, _, err := builder.CreateOffer(
		context.Background(),
		issuer,
		[]string{"X"},
		PreAuthCfg{UserPINRequired: boolPtr(true)},
		VersionDraft11,
		"https://issuer.example",
	)
	require.NoError(t, err)

	require.NotNil(t, session.CredentialOfferPayloadV11)
	assert.Equal(t, []string{"X"}, session.CredentialOfferPayloadV11.Credentials)

	grant, ok := session.CredentialOfferPayloadV11.Grants[GrantPreAuthorizedCodeURN].(GrantPreAuthorizedCodeV11)
	require.True(t, ok)
	assert.True(t, grant.UserPinRequired)
	assert.Equal(t, openid4vci.TXCode{}, grant.TxCode)
}

func TestCreateOfferRejectsNonUniqueOfferedCredentials(t *testing.T) {
	tracer := newTestTracer(t)
	builder := NewOfferBuilder(testLog(), tracer)

	issuer := testIssuer(map[string]openid4vci.CredentialConfigurationsSupported{
		"X": jwtVcConfiguration("X"),
	})

	_, _, err := builder.CreateOffer(context.Background(), issuer, []string{"X", "X"}, PreAuthCfg{}, VersionDraft13, "https://issuer.example")
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeInvalidOffer))
}

func TestCreateOfferRejectsUnsupportedConfiguration(t *testing.T) {
	tracer := newTestTracer(t)
	builder := NewOfferBuilder(testLog(), tracer)

	issuer := testIssuer(map[string]openid4vci.CredentialConfigurationsSupported{
		"X": jwtVcConfiguration("X"),
	})

	_, _, err := builder.CreateOffer(context.Background(), issuer, []string{"Y"}, PreAuthCfg{}, VersionDraft13, "https://issuer.example")
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeInvalidOffer))
}

func TestCreateOfferRejectsEmptyOfferedCredentials(t *testing.T) {
	tracer := newTestTracer(t)
	builder := NewOfferBuilder(testLog(), tracer)

	issuer := testIssuer(map[string]openid4vci.CredentialConfigurationsSupported{
		"X": jwtVcConfiguration("X"),
	})

	_, _, err := builder.CreateOffer(context.Background(), issuer, nil, PreAuthCfg{}, VersionDraft13, "https://issuer.example")
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeInvalidOffer))
}

// TestCreateOfferRejectsTxCodeWithoutPIN: tx_code present with
// user_pin_required explicitly false is rejected rather than silently
// normalized.
func TestCreateOfferRejectsTxCodeWithoutPIN(t *testing.T) {
	tracer := newTestTracer(t)
	builder := NewOfferBuilder(testLog(), tracer)

	issuer := testIssuer(map[string]openid4vci.CredentialConfigurationsSupported{
		"X": jwtVcConfiguration("X"),
	})

	_, _, err := builder.CreateOffer(
		context.Background(),
		issuer,
		[]string{"X"},
		PreAuthCfg{UserPINRequired: boolPtr(false), TxCode: &openid4vci.TXCode{InputMode: "numeric", Length: 4}},
		VersionDraft13,
		"https://issuer.example",
	)
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeInvalidOffer))
}

// TestCreateOfferTxCodeForcesUserPINRequired covers the other direction:
// a tx_code set without an explicit user_pin_required forces it true.
func TestCreateOfferTxCodeForcesUserPINRequired(t *testing.T) {
	tracer := newTestTracer(t)
	builder := NewOfferBuilder(testLog(), tracer)

	issuer := testIssuer(map[string]openid4vci.CredentialConfigurationsSupported{
		"X": jwtVcConfiguration("X"),
	})

	session, _, err := builder.CreateOffer(
		context.Background(),
		issuer,
		[]string{"X"},
		PreAuthCfg{TxCode: &openid4vci.TXCode{InputMode: "numeric", Length: 4}},
		VersionDraft13,
		"https://issuer.example",
	)
	require.NoError(t, err)
	assert.True(t, session.UserPINRequired)
}

func TestOfferURIQR(t *testing.T) {
	tracer := newTestTracer(t)
	builder := NewOfferBuilder(testLog(), tracer)

	issuer := testIssuer(map[string]openid4vci.CredentialConfigurationsSupported{
		"X": jwtVcConfiguration("X"),
	})

	_, offerURI, err := builder.CreateOffer(context.Background(), issuer, []string{"X"}, PreAuthCfg{}, VersionDraft13, "https://issuer.example")
	require.NoError(t, err)

	qr, err := offerURI.QR(2, 256)
	require.NoError(t, err)

	assert.Equal(t, offerURI.String(), qr.CredentialOfferURL)
	png, err := base64.StdEncoding.DecodeString(qr.QRBase64)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}
