package issuance

import (
	"context"

	"oid4vci-issuer/pkg/logger"
	"oid4vci-issuer/pkg/openid4vci"
	"oid4vci-issuer/pkg/trace"
)

// CredentialOfferV11 is the draft-11 projection of a credential offer: the
// same configuration ids under the legacy "credentials" key, carried
// alongside user_pin_required rather than a bare tx_code object.
type CredentialOfferV11 struct {
	CredentialIssuer string         `bson:"credential_issuer" json:"credential_issuer"`
	Credentials      []string       `bson:"credentials" json:"credentials"`
	Grants           map[string]any `bson:"grants" json:"grants"`
}

// GrantPreAuthorizedCodeV11 is the draft-11 shape of the pre-authorized code
// grant: it adds user_pin_required alongside the tx_code object draft-13
// also carries.
type GrantPreAuthorizedCodeV11 struct {
	PreAuthorizedCode string            `json:"pre-authorized_code" bson:"pre-authorized_code"`
	TxCode            openid4vci.TXCode `json:"tx_code" bson:"tx_code"`
	UserPinRequired   bool              `json:"user_pin_required" bson:"user_pin_required"`
}

// VersionBridge translates offer payloads and response fields between
// drafts 11 and 13.
type VersionBridge struct {
	log    *logger.Log
	tracer *trace.Tracer
}

// NewVersionBridge creates a VersionBridge.
func NewVersionBridge(log *logger.Log, tracer *trace.Tracer) *VersionBridge {
	return &VersionBridge{log: log.New("version_bridge"), tracer: tracer}
}

// ProjectOfferV11 derives the draft-11 projection of a draft-13 offer
// payload: credential_configuration_ids becomes credentials, and the
// pre-authorized code grant gains user_pin_required.
func (b *VersionBridge) ProjectOfferV11(offer *openid4vci.CredentialOfferParameters, userPINRequired bool) *CredentialOfferV11 {
	grants := make(map[string]any, len(offer.Grants))
	for key, grant := range offer.Grants {
		if key != GrantPreAuthorizedCodeURN {
			grants[key] = grant
			continue
		}
		preAuth, ok := grant.(openid4vci.GrantPreAuthorizedCode)
		if !ok {
			if p, ok := grant.(*openid4vci.GrantPreAuthorizedCode); ok {
				preAuth = *p
			}
		}
		grants[key] = GrantPreAuthorizedCodeV11{
			PreAuthorizedCode: preAuth.PreAuthorizedCode,
			TxCode:            preAuth.TXCode,
			UserPinRequired:   userPINRequired,
		}
	}

	return &CredentialOfferV11{
		CredentialIssuer: offer.CredentialIssuer,
		Credentials:      append([]string(nil), offer.CredentialConfigurationIDs...),
		Grants:           grants,
	}
}

// ProjectResponse applies the read-path rule: when the stored offer is
// draft-13, the credential response's format field MUST be set to the
// request's format, since draft-13 omits it while the inner issuer library
// still emits draft-11-shaped responses. This is preserved exactly as
// specified even though it unconditionally overwrites a caller-set format.
func (b *VersionBridge) ProjectResponse(ctx context.Context, session *IssuanceSession, requestFormat CredentialFormat, response *CredentialResponse) *CredentialResponse {
	_, span := b.tracer.Start(ctx, "issuance:version:project_response")
	defer span.End()

	if session.Version == VersionDraft13 {
		b.log.Trace("overwriting response.format for draft-13 offer", "format", requestFormat)
		response.Format = string(requestFormat)
	}
	return response
}

// ConfigsV13ToV11 is the draft-11 view SignerDispatch hands the mapper when
// a session was offered under draft-11. The in-memory
// CredentialConfigurationsSupported shape is identical across the two
// drafts this package models, so the projection is the identity.
func ConfigsV13ToV11(configs map[string]openid4vci.CredentialConfigurationsSupported) map[string]openid4vci.CredentialConfigurationsSupported {
	return configs
}

// ConfigsV11ToV13 is the inverse projection, kept symmetric with
// ConfigsV13ToV11 though the in-memory CredentialConfigurationsSupported
// shape this package uses is already draft-13-shaped; draft-11 callers
// reach this package through CredentialOfferV11 instead.
func ConfigsV11ToV13(configs map[string]openid4vci.CredentialConfigurationsSupported) map[string]openid4vci.CredentialConfigurationsSupported {
	return configs
}
