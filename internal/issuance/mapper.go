package issuance

import "fmt"

// DefaultCredentialMapper is the built-in CredentialMapper: it turns a
// matched configuration directly into SignOptions using the session's
// issuance_metadata as the credential claims, with no external data-source
// lookup. A host whose claims come from a backing record store (a PID
// register, a student record system, ...) supplies its own CredentialMapper
// instead; this one only serves issuers content to carry whatever
// issuance_metadata CreateOffer was given.
type DefaultCredentialMapper struct {
	signingKeyRef      string
	verificationMethod string
}

// NewDefaultCredentialMapper creates a DefaultCredentialMapper. signingKeyRef
// and verificationMethod are passed through verbatim to every SignOptions
// this mapper produces.
func NewDefaultCredentialMapper(signingKeyRef, verificationMethod string) *DefaultCredentialMapper {
	return &DefaultCredentialMapper{signingKeyRef: signingKeyRef, verificationMethod: verificationMethod}
}

// Map picks the first matched configuration (CredentialMatcher already
// narrowed the candidate set to ones the wallet may legally receive) and
// builds SignOptions tagged by its format.
func (m *DefaultCredentialMapper) Map(input MapperInput) (*SignOptions, error) {
	if len(input.ConfigurationIDs) == 0 {
		return nil, fmt.Errorf("no matched configuration to map")
	}
	configurationID := input.ConfigurationIDs[0]
	config := input.Matched[configurationID]

	opts := &SignOptions{
		CredentialSupportedID: configurationID,
		VerificationMethod:    m.verificationMethod,
		SigningKeyRef:         m.signingKeyRef,
		Payload:               input.Session.IssuanceMetadata,
	}

	switch CredentialFormat(config.Format) {
	case FormatJwtVcJson:
		opts.Format = SignOptionsJwtVc
	case FormatJwtVcJsonLd, FormatLdpVc:
		opts.Format = SignOptionsLdpVc
	case FormatSdJwtVc:
		opts.Format = SignOptionsSdJwtVc
		opts.VCT = config.VCT
	case FormatMsoMdoc:
		opts.Format = SignOptionsMsoMdoc
		opts.DocType = config.Doctype
	default:
		return nil, fmt.Errorf("unsupported configuration format: %s", config.Format)
	}

	return opts, nil
}

var _ CredentialMapper = (*DefaultCredentialMapper)(nil)
