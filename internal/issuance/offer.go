package issuance

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"

	"oid4vci-issuer/pkg/logger"
	"oid4vci-issuer/pkg/openid4vci"
	"oid4vci-issuer/pkg/trace"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// PreAuthCfg is the caller's input to OfferBuilder.CreateOffer describing
// the pre-authorized code grant to mint. UserPINRequired is a pointer so
// "not specified" and "explicitly false" stay distinguishable: a tx_code
// with the pin left unspecified forces the pin on, while a tx_code with the
// pin explicitly off is a contradiction the caller must resolve.
type PreAuthCfg struct {
	PreAuthorizedCode string
	UserPINRequired   *bool
	TxCode            *openid4vci.TXCode
}

// normalize resolves the tx_code / user_pin_required consistency rule:
// tx_code set forces user_pin_required true; user_pin_required true without
// a tx_code gets an empty one; user_pin_required explicitly false with a
// tx_code set is rejected.
func (p *PreAuthCfg) normalize() (bool, *openid4vci.TXCode, error) {
	if p.TxCode != nil {
		if p.UserPINRequired != nil && !*p.UserPINRequired {
			return false, nil, errTxCodeWithoutPIN
		}
		return true, p.TxCode, nil
	}
	if p.UserPINRequired != nil && *p.UserPINRequired {
		return true, &openid4vci.TXCode{}, nil
	}
	return false, nil, nil
}

// OfferBuilder builds a credential offer, assigns the pre-authorized code
// and optional tx_code, and returns the session to persist plus the
// wallet-facing deep link.
type OfferBuilder struct {
	log    *logger.Log
	tracer *trace.Tracer
}

// NewOfferBuilder creates an OfferBuilder.
func NewOfferBuilder(log *logger.Log, tracer *trace.Tracer) *OfferBuilder {
	return &OfferBuilder{log: log.New("offer_builder"), tracer: tracer}
}

// OfferURI is the openid-credential-offer:// deep link handed back to the
// caller, distinct from the CredentialOfferURI the payload is published at.
type OfferURI string

func (o OfferURI) String() string { return string(o) }

// QR renders the deep link as a base64 PNG, a convenience not part of the
// wire protocol.
func (o OfferURI) QR(recoveryLevel, size int) (*openid4vci.QR, error) {
	qrPNG, err := qrcode.Encode(o.String(), qrcode.RecoveryLevel(recoveryLevel), size)
	if err != nil {
		return nil, err
	}
	return &openid4vci.QR{
		QRBase64:           base64.StdEncoding.EncodeToString(qrPNG),
		CredentialOfferURL: o.String(),
	}, nil
}

// CreateOffer validates the offered configuration ids against the issuer's
// supported set, normalizes the pre-auth grant, builds a new session in
// state OfferCreated, and returns a deep link carrying only the offer URI.
func (b *OfferBuilder) CreateOffer(
	ctx context.Context,
	issuer *IssuerRecord,
	offeredCredentials []string,
	preAuthCfg PreAuthCfg,
	version Version,
	baseURI string,
) (*IssuanceSession, OfferURI, error) {
	ctx, span := b.tracer.Start(ctx, "issuance:offer:create_offer")
	defer span.End()

	if err := validateOfferedCredentials(issuer, offeredCredentials); err != nil {
		return nil, "", newError(ErrCodeInvalidOffer, err)
	}

	pinRequired, txCode, err := preAuthCfg.normalize()
	if err != nil {
		return nil, "", newError(ErrCodeInvalidOffer, err)
	}

	preAuthorizedCode := preAuthCfg.PreAuthorizedCode
	if preAuthorizedCode == "" {
		code, err := generatePreAuthorizedCode()
		if err != nil {
			return nil, "", newError(ErrCodeInvalidOffer, err)
		}
		preAuthorizedCode = code
	}

	grant := openid4vci.GrantPreAuthorizedCode{PreAuthorizedCode: preAuthorizedCode}
	if txCode != nil {
		grant.TXCode = *txCode
	}

	offer := &openid4vci.CredentialOfferParameters{
		CredentialIssuer:           baseURI,
		CredentialConfigurationIDs: offeredCredentials,
		Grants: map[string]any{
			GrantPreAuthorizedCodeURN: grant,
		},
	}

	offerURI, err := offer.CredentialOfferURI()
	if err != nil {
		return nil, "", newError(ErrCodeInvalidOffer, err)
	}

	session := &IssuanceSession{
		ID:                     uuid.NewString(),
		IssuerID:               issuer.IssuerID,
		CredentialOfferURI:     offerURI.String(),
		CredentialOfferPayload: offer,
		OfferedCredentials:     offeredCredentials,
		Version:                version,
		PreAuthorizedCode:      preAuthorizedCode,
		TxCode:                 txCode,
		UserPINRequired:        pinRequired,
		State:                  StateOfferCreated,
		IssuedCredentials:      []string{},
	}

	if version == VersionDraft11 {
		bridge := NewVersionBridge(b.log, b.tracer)
		session.CredentialOfferPayloadV11 = bridge.ProjectOfferV11(offer, pinRequired)
	}

	b.log.Debug("built credential offer", "issuer_id", issuer.IssuerID, "offer_uri", session.CredentialOfferURI)

	deepLink := buildOfferDeepLink(session.CredentialOfferURI)

	return session, deepLink, nil
}

// validateOfferedCredentials checks that the offer's configuration ids are
// unique and a subset of the issuer's supported ids.
func validateOfferedCredentials(issuer *IssuerRecord, offeredCredentials []string) error {
	if len(offeredCredentials) == 0 {
		return errEmptyOfferedCredentials
	}

	seen := make(map[string]struct{}, len(offeredCredentials))
	for _, id := range offeredCredentials {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s", errNonUniqueOfferedCredentials, id)
		}
		seen[id] = struct{}{}

		if _, ok := issuer.ConfigurationByID(id); !ok {
			return fmt.Errorf("%w: %s", errUnsupportedConfiguration, id)
		}
	}
	return nil
}

// generatePreAuthorizedCode returns a cryptographically random, base64url
// encoded code with at least 128 bits of entropy.
func generatePreAuthorizedCode() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// buildOfferDeepLink wraps the offer URI in the openid-credential-offer://
// scheme, carrying only the URI (never the inlined payload) as a query
// parameter.
func buildOfferDeepLink(offerURI string) OfferURI {
	q := url.Values{}
	q.Set("credential_offer_uri", offerURI)
	return OfferURI(fmt.Sprintf("openid-credential-offer://?%s", q.Encode()))
}
