// Package issuance implements the issuance session state machine and the
// seven components that drive an OID4VCI pre-authorized code flow from offer
// creation through credential delivery: OfferBuilder, SessionStore,
// RequestResolver, CredentialMatcher, HolderBindingExtractor, SignerDispatch,
// and VersionBridge, orchestrated by Client.
package issuance

import (
	"crypto"
	"time"

	"oid4vci-issuer/pkg/openid4vci"
)

// CredentialFormat is the closed set of credential format profiles this
// issuer understands. Matcher and signer dispatch switch exhaustively on this
// tag instead of branching on an open-ended wire string.
type CredentialFormat string

const (
	FormatJwtVcJson   CredentialFormat = "jwt_vc_json"
	FormatJwtVcJsonLd CredentialFormat = "jwt_vc_json-ld"
	FormatLdpVc       CredentialFormat = "ldp_vc"
	FormatSdJwtVc     CredentialFormat = "vc+sd-jwt"
	FormatMsoMdoc     CredentialFormat = "mso_mdoc"
)

// Version selects the OID4VCI draft whose wire shapes a session was offered
// under.
type Version string

const (
	VersionDraft11 Version = "v1.draft11"
	VersionDraft13 Version = "v1.draft13"
)

// SessionState is the issuance session's lifecycle state, per the data
// model's state machine.
type SessionState string

const (
	StateOfferCreated               SessionState = "OfferCreated"
	StateOfferUriRetrieved          SessionState = "OfferUriRetrieved"
	StateAccessTokenRequested       SessionState = "AccessTokenRequested"
	StateAccessTokenCreated         SessionState = "AccessTokenCreated"
	StateCredentialRequestReceived  SessionState = "CredentialRequestReceived"
	StateCredentialsPartiallyIssued SessionState = "CredentialsPartiallyIssued"
	StateCompleted                  SessionState = "Completed"
	StateError                      SessionState = "Error"
)

// GrantPreAuthorizedCodeURN is the grant type key under which the
// pre-authorized code grant is carried in a credential offer's grants map.
const GrantPreAuthorizedCodeURN = "urn:ietf:params:oauth:grant-type:pre-authorized_code"

// IssuerRecord is the persistent identity of an issuer: its display
// properties, the DPoP/token verification material it advertises, and
// exactly one of its draft-13 or legacy draft-11 supported-configuration
// maps.
type IssuerRecord struct {
	IssuerID                          string                                                  `bson:"issuer_id" json:"issuer_id" validate:"required"`
	Display                           any                                                     `bson:"display,omitempty" json:"display,omitempty"`
	DPoPAlgValuesSupported            []string                                                `bson:"dpop_alg_values,omitempty" json:"dpop_alg_values,omitempty"`
	AccessTokenPublicKeyFingerprint   string                                                  `bson:"access_token_public_key_fingerprint,omitempty" json:"access_token_public_key_fingerprint,omitempty"`
	CredentialConfigurationsSupported map[string]openid4vci.CredentialConfigurationsSupported `bson:"credential_configurations_supported,omitempty" json:"credential_configurations_supported,omitempty"`
	CredentialsSupported              map[string]openid4vci.CredentialConfigurationsSupported `bson:"credentials_supported,omitempty" json:"credentials_supported,omitempty"`
}

// SupportedConfigurationIDs returns the issuer's supported credential
// configuration ids, preferring the draft-13 map and falling back to the
// draft-11 legacy one, per the data model's "exactly one of" constraint.
func (r *IssuerRecord) SupportedConfigurationIDs() []string {
	if len(r.CredentialConfigurationsSupported) > 0 {
		ids := make([]string, 0, len(r.CredentialConfigurationsSupported))
		for id := range r.CredentialConfigurationsSupported {
			ids = append(ids, id)
		}
		return ids
	}
	ids := make([]string, 0, len(r.CredentialsSupported))
	for id := range r.CredentialsSupported {
		ids = append(ids, id)
	}
	return ids
}

// ConfigurationByID returns the supported configuration for id, from
// whichever of the two maps is populated.
func (r *IssuerRecord) ConfigurationByID(id string) (openid4vci.CredentialConfigurationsSupported, bool) {
	if cfg, ok := r.CredentialConfigurationsSupported[id]; ok {
		return cfg, true
	}
	cfg, ok := r.CredentialsSupported[id]
	return cfg, ok
}

// IssuanceSession is the persistent per-flow state tracked from offer
// creation through credential delivery.
type IssuanceSession struct {
	ID       string `bson:"_id" json:"id" validate:"required"`
	IssuerID string `bson:"issuer_id" json:"issuer_id" validate:"required"`

	CredentialOfferURI        string                                `bson:"credential_offer_uri" json:"credential_offer_uri" validate:"required"`
	CredentialOfferPayload    *openid4vci.CredentialOfferParameters `bson:"credential_offer_payload" json:"credential_offer_payload" validate:"required"`
	CredentialOfferPayloadV11 *CredentialOfferV11                   `bson:"credential_offer_payload_v11,omitempty" json:"credential_offer_payload_v11,omitempty"`
	OfferedCredentials        []string                              `bson:"offered_credentials" json:"offered_credentials" validate:"required,min=1,unique"`
	Version                   Version                               `bson:"version" json:"version" validate:"required"`

	PreAuthorizedCode string             `bson:"pre_authorized_code" json:"pre_authorized_code" validate:"required"`
	TxCode            *openid4vci.TXCode `bson:"tx_code,omitempty" json:"tx_code,omitempty"`
	UserPINRequired   bool               `bson:"user_pin_required" json:"user_pin_required"`
	IssuanceMetadata  map[string]any     `bson:"issuance_metadata,omitempty" json:"issuance_metadata,omitempty"`

	State SessionState `bson:"state" json:"state" validate:"required"`

	CNonce          string    `bson:"c_nonce" json:"c_nonce"`
	CNonceExpiresAt time.Time `bson:"c_nonce_expires_at" json:"c_nonce_expires_at"`

	IssuedCredentials []string `bson:"issued_credentials" json:"issued_credentials"`

	ErrorMessage string `bson:"error_message,omitempty" json:"error_message,omitempty"`
}

// HasIssued reports whether configurationID has already been delivered in
// this session.
func (s *IssuanceSession) HasIssued(configurationID string) bool {
	for _, id := range s.IssuedCredentials {
		if id == configurationID {
			return true
		}
	}
	return false
}

// RemainingOffered reports whether any offered configuration id has not yet
// been issued.
func (s *IssuanceSession) RemainingOffered() bool {
	for _, id := range s.OfferedCredentials {
		if !s.HasIssued(id) {
			return true
		}
	}
	return false
}

// CredentialRequest is the transient, wire-sourced request a wallet submits
// to the credential endpoint, normalized into the internal shape the
// resolver/matcher/binding extractor operate on.
type CredentialRequest struct {
	Format               CredentialFormat             `json:"format,omitempty"`
	CredentialIdentifier string                       `json:"credential_identifier,omitempty"`
	Types                []string                     `json:"types,omitempty"`
	CredentialDefinition *CredentialDefinitionRequest `json:"credential_definition,omitempty"`
	VCT                  string                       `json:"vct,omitempty"`
	Doctype              string                       `json:"doctype,omitempty"`
	Proof                *openid4vci.Proof            `json:"proof"`
	CNonce               string                       `json:"c_nonce,omitempty"`
}

// CredentialDefinitionRequest carries the W3C credential_definition shape a
// wallet may submit, which uses "type" for jwt_vc_json and "types" for the
// JSON-LD formats.
type CredentialDefinitionRequest struct {
	Type  []string `json:"type,omitempty"`
	Types []string `json:"types,omitempty"`
}

// requestedTypes returns whichever of credential_definition.type,
// credential_definition.types, or top-level types the wallet populated.
func (r *CredentialRequest) requestedTypes() []string {
	if r.CredentialDefinition != nil {
		if len(r.CredentialDefinition.Type) > 0 {
			return r.CredentialDefinition.Type
		}
		if len(r.CredentialDefinition.Types) > 0 {
			return r.CredentialDefinition.Types
		}
	}
	return r.Types
}

// HolderBindingMethod distinguishes the two ways a holder's proof JWT can
// identify the key an issued credential should bind to.
type HolderBindingMethod string

const (
	BindingMethodDID HolderBindingMethod = "did"
	BindingMethodJWK HolderBindingMethod = "jwk"
)

// HolderBinding is the cryptographic link between an issued credential and a
// key controlled by the wallet, extracted from the proof JWT header.
type HolderBinding struct {
	Method HolderBindingMethod
	DIDURL string
	JWK    *openid4vci.JWK
	Key    crypto.PublicKey
}

// SignOptionsFormat tags the output format a mapper's SignOptions targets,
// distinct from the wire CredentialFormat since LdpVc and JwtVc share one
// signer family.
type SignOptionsFormat string

const (
	SignOptionsJwtVc   SignOptionsFormat = "JwtVc"
	SignOptionsLdpVc   SignOptionsFormat = "LdpVc"
	SignOptionsSdJwtVc SignOptionsFormat = "SdJwtVc"
	SignOptionsMsoMdoc SignOptionsFormat = "MsoMdoc"
)

// SignOptions is what the host-supplied mapper returns: the credential
// payload and the key reference to sign with, tagged by output format.
type SignOptions struct {
	Format                SignOptionsFormat `json:"format"`
	CredentialSupportedID string            `json:"credential_supported_id" validate:"required"`
	VerificationMethod    string            `json:"verification_method,omitempty"`
	SigningKeyRef         string            `json:"signing_key_ref,omitempty"`
	Payload               map[string]any    `json:"payload,omitempty"`
	VCT                   string            `json:"vct,omitempty"`
	DocType               string            `json:"doc_type,omitempty"`
}

// SignResult is what a format-specific signer callback returns: the signed
// credential envelope, or a deferred-issuance marker the core rejects per
// the deferred-issuance Non-goal.
type SignResult struct {
	Format          string `json:"format,omitempty"`
	Credential      string `json:"credential,omitempty"`
	AcceptanceToken string `json:"acceptance_token,omitempty"`
	TransactionID   string `json:"transaction_id,omitempty"`
}

// CredentialResponse is what HandleCredentialRequest returns to the caller.
type CredentialResponse struct {
	Format          string `json:"format,omitempty"`
	Credential      string `json:"credential"`
	CNonce          string `json:"c_nonce,omitempty"`
	CNonceExpiresIn int    `json:"c_nonce_expires_in,omitempty"`
}

// MapperInput bundles everything the host-supplied
// credential_request_to_credential_mapper needs to decide how to sign a
// matched request.
type MapperInput struct {
	Session          *IssuanceSession
	Binding          HolderBinding
	Offer            *openid4vci.CredentialOfferParameters
	Request          *CredentialRequest
	Matched          map[string]openid4vci.CredentialConfigurationsSupported
	ConfigurationIDs []string
}

// CredentialMapper is the host-supplied collaborator that turns a matched,
// bound credential request into signing instructions.
type CredentialMapper interface {
	Map(input MapperInput) (*SignOptions, error)
}
