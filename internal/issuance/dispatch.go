package issuance

import (
	"context"
	"fmt"

	"oid4vci-issuer/pkg/logger"
	"oid4vci-issuer/pkg/openid4vci"
	"oid4vci-issuer/pkg/signing"
	"oid4vci-issuer/pkg/trace"
)

// SignerRegistry resolves the signing.Signer a SignOptions.SigningKeyRef
// names. Key storage/rotation is an external collaborator; the registry is
// the seam a host implements over its own key vault or HSM session.
type SignerRegistry interface {
	SignerByRef(ctx context.Context, signingKeyRef string) (signing.Signer, error)
}

// W3cCredentialService produces a signed jwt_vc_json/jwt_vc_json-ld/ldp_vc
// envelope. An external collaborator; the core only supplies the JwtVc path
// by default (see DefaultW3cCredentialService).
type W3cCredentialService interface {
	IssueW3C(ctx context.Context, signer signing.Signer, opts *SignOptions, binding HolderBinding) (*SignResult, error)
}

// SdJwtVcApi produces a signed vc+sd-jwt envelope. An external collaborator;
// this core does not implement SD-JWT disclosure construction.
type SdJwtVcApi interface {
	IssueSdJwtVc(ctx context.Context, signer signing.Signer, opts *SignOptions, binding HolderBinding) (*SignResult, error)
}

// MdocApi produces a signed mso_mdoc envelope. An external collaborator;
// this core does not implement MSO/CBOR construction.
type MdocApi interface {
	IssueMdoc(ctx context.Context, signer signing.Signer, opts *SignOptions, binding HolderBinding) (*SignResult, error)
}

// SignerDispatch is the coordination core: it invokes the
// host-supplied mapper, enforces the issued-once and format-agreement
// invariants around it, and routes the resulting SignOptions to the
// appropriate format adapter.
type SignerDispatch struct {
	log            *logger.Log
	tracer         *trace.Tracer
	store          SessionStore
	mapper         CredentialMapper
	signerRegistry SignerRegistry
	w3c            W3cCredentialService
	sdJWT          SdJwtVcApi
	mdoc           MdocApi
}

// NewSignerDispatch creates a SignerDispatch. sdJWT and mdoc may be nil if
// the issuer never offers those formats; a request against a nil adapter
// fails with SignerProducedNothing at dispatch time rather than at
// construction.
func NewSignerDispatch(
	log *logger.Log,
	tracer *trace.Tracer,
	store SessionStore,
	mapper CredentialMapper,
	signerRegistry SignerRegistry,
	w3c W3cCredentialService,
	sdJWT SdJwtVcApi,
	mdoc MdocApi,
) *SignerDispatch {
	return &SignerDispatch{
		log:            log.New("signer_dispatch"),
		tracer:         tracer,
		store:          store,
		mapper:         mapper,
		signerRegistry: signerRegistry,
		w3c:            w3c,
		sdJWT:          sdJWT,
		mdoc:           mdoc,
	}
}

// Dispatch coordinates an already-matched, already-bound
// request: invoke the mapper, guard against double issuance, persist the
// issued marker before signing, enforce format agreement, sign, reject
// deferred-issuance responses, and advance session state.
func (d *SignerDispatch) Dispatch(
	ctx context.Context,
	offer *openid4vci.CredentialOfferParameters,
	session *IssuanceSession,
	request *CredentialRequest,
	binding HolderBinding,
	matched map[string]openid4vci.CredentialConfigurationsSupported,
) (*CredentialResponse, error) {
	ctx, span := d.tracer.Start(ctx, "issuance:dispatch:dispatch")
	defer span.End()

	configurationIDs := make([]string, 0, len(matched))
	for id := range matched {
		configurationIDs = append(configurationIDs, id)
	}

	// sessions offered under draft-11 hand the mapper the draft-11 view of
	// the matched configurations
	matchedView := matched
	if session.Version == VersionDraft11 {
		matchedView = ConfigsV13ToV11(matched)
	}

	signOptions, err := d.mapper.Map(MapperInput{
		Session:          session,
		Binding:          binding,
		Offer:            offer,
		Request:          request,
		Matched:          matchedView,
		ConfigurationIDs: configurationIDs,
	})
	if err != nil {
		return nil, err
	}

	current, err := d.store.GetByID(ctx, session.IssuerID, session.ID)
	if err != nil {
		return nil, err
	}
	if current.HasIssued(signOptions.CredentialSupportedID) {
		return nil, newError(ErrCodeAlreadyIssued, errAlreadyIssued)
	}

	current.IssuedCredentials = append(current.IssuedCredentials, signOptions.CredentialSupportedID)
	current.State = StateCredentialRequestReceived
	if err := d.store.Update(ctx, current); err != nil {
		return nil, err
	}

	if err := enforceFormatAgreement(signOptions, request); err != nil {
		return nil, err
	}

	signer, err := d.signerRegistry.SignerByRef(ctx, signOptions.SigningKeyRef)
	if err != nil {
		return nil, d.markError(ctx, current, err)
	}

	result, err := d.sign(ctx, signOptions, signer, binding)
	if err != nil {
		return nil, d.markError(ctx, current, err)
	}

	if result.AcceptanceToken != "" || result.TransactionID != "" {
		return nil, d.markError(ctx, current, newError(ErrCodeDeferredUnsupported, errDeferredUnsupported))
	}
	if result.Credential == "" {
		return nil, d.markError(ctx, current, newError(ErrCodeSignerProducedNothing, errSignerProducedNothing))
	}

	if current.RemainingOffered() {
		current.State = StateCredentialsPartiallyIssued
	} else {
		current.State = StateCompleted
	}
	if err := d.store.Update(ctx, current); err != nil {
		return nil, err
	}

	return &CredentialResponse{
		Format:          result.Format,
		Credential:      result.Credential,
		CNonce:          current.CNonce,
		CNonceExpiresIn: 0,
	}, nil
}

// markError persists session.State = Error with the given cause's message
// and returns the original error, so callers can both fail the request and
// record why.
func (d *SignerDispatch) markError(ctx context.Context, session *IssuanceSession, cause error) error {
	session.State = StateError
	session.ErrorMessage = cause.Error()
	if err := d.store.Update(ctx, session); err != nil {
		d.log.Debug("failed to persist error state", "session_id", session.ID, "error", err)
	}
	return cause
}

// enforceFormatAgreement checks that the mapper's chosen output
// format must agree with what the wallet actually requested.
func enforceFormatAgreement(opts *SignOptions, request *CredentialRequest) error {
	switch opts.Format {
	case SignOptionsJwtVc, SignOptionsLdpVc:
		switch request.Format {
		case FormatJwtVcJson, FormatJwtVcJsonLd, FormatLdpVc:
			return nil
		}
		return newError(ErrCodeFormatMismatch, fmt.Errorf("%w: sign options format %s, request format %s", errFormatMismatch, opts.Format, request.Format))
	case SignOptionsSdJwtVc:
		if request.Format == FormatSdJwtVc && opts.VCT == request.VCT {
			return nil
		}
		return newError(ErrCodeFormatMismatch, fmt.Errorf("%w: sd-jwt vct mismatch", errFormatMismatch))
	case SignOptionsMsoMdoc:
		if request.Format == FormatMsoMdoc && opts.DocType == request.Doctype {
			return nil
		}
		return newError(ErrCodeFormatMismatch, fmt.Errorf("%w: mdoc doctype mismatch", errFormatMismatch))
	default:
		return newError(ErrCodeFormatMismatch, fmt.Errorf("%w: unknown sign options format %s", errFormatMismatch, opts.Format))
	}
}

// sign routes to the format-specific adapter.
func (d *SignerDispatch) sign(ctx context.Context, opts *SignOptions, signer signing.Signer, binding HolderBinding) (*SignResult, error) {
	switch opts.Format {
	case SignOptionsJwtVc, SignOptionsLdpVc:
		if d.w3c == nil {
			return nil, newError(ErrCodeSignerProducedNothing, fmt.Errorf("no W3cCredentialService configured"))
		}
		if len(signer.SupportedAlgorithms()) == 0 {
			return nil, newError(ErrCodeNoSupportedAlgorithm, errNoSupportedAlgorithm)
		}
		return d.w3c.IssueW3C(ctx, signer, opts, binding)
	case SignOptionsSdJwtVc:
		if d.sdJWT == nil {
			return nil, newError(ErrCodeSignerProducedNothing, fmt.Errorf("no SdJwtVcApi configured"))
		}
		return d.sdJWT.IssueSdJwtVc(ctx, signer, opts, binding)
	case SignOptionsMsoMdoc:
		if d.mdoc == nil {
			return nil, newError(ErrCodeSignerProducedNothing, fmt.Errorf("no MdocApi configured"))
		}
		return d.mdoc.IssueMdoc(ctx, signer, opts, binding)
	default:
		return nil, newError(ErrCodeSignerProducedNothing, fmt.Errorf("unknown sign options format %s", opts.Format))
	}
}
