package openid4vci

import (
	"encoding/json"
	"net/url"

	"github.com/google/uuid"
)

// CredentialOfferParameters https://openid.net/specs/openid-4-verifiable-credential-issuance-1_0.html#name-credential-offer-parameters
type CredentialOfferParameters struct {
	CredentialIssuer           string         `json:"credential_issuer" bson:"credential_issuer" validate:"required"`
	CredentialConfigurationIDs []string       `json:"credential_configuration_ids" bson:"credential_configuration_ids" validate:"required"`
	Grants                     map[string]any `json:"grants"`
}

// Marshal marshals the CredentialOffer
func (c *CredentialOfferParameters) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// GrantPreAuthorizedCode pre-authorized code grant
type GrantPreAuthorizedCode struct {
	PreAuthorizedCode   string `json:"pre-authorized_code" bson:"pre-authorized_code" validate:"required"`
	TXCode              TXCode `json:"tx_code,omitempty" bson:"tx_code,omitempty"`
	AuthorizationServer string `json:"authorization_server,omitempty" bson:"authorization_server,omitempty"`
}

// TXCode Transaction Code
type TXCode struct {
	InputMode   string `json:"input_mode" bson:"input_mode" validate:"oneof=numeric text"`
	Length      int    `json:"length"`
	Description string `json:"description"`
}

// CredentialOfferURI is the absolute HTTPS URL a wallet dereferences to
// fetch the offer payload, minted per offer with a fresh uuid segment.
type CredentialOfferURI string

func (c *CredentialOfferURI) String() string {
	return string(*c)
}

// QR not part of the spec, for convenience
type QR struct {
	QRBase64           string `json:"qr_base64" bson:"qr_base64"`
	CredentialOfferURL string `json:"credential_offer_url" bson:"credential_offer_url"`
}

// CredentialOfferURI https://openid.net/specs/openid-4-verifiable-credential-issuance-1_0.html#name-sending-credential-offer-by-uri
func (c *CredentialOfferParameters) CredentialOfferURI() (CredentialOfferURI, error) {
	u, err := url.Parse(c.CredentialIssuer)
	if err != nil {
		return "", err
	}

	q := u.JoinPath("credential-offer", uuid.NewString())

	return CredentialOfferURI(q.String()), nil
}

func (c *CredentialOfferURI) UUID() (string, error) {
	u, err := url.Parse(c.String())
	if err != nil {
		return "", err
	}

	credentialOfferUUID := u.Path[len("/credential-offer/"):]

	return credentialOfferUUID, nil
}
