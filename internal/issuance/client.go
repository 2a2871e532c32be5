package issuance

import (
	"context"
	"time"

	"oid4vci-issuer/pkg/logger"
	"oid4vci-issuer/pkg/openid4vci"
	"oid4vci-issuer/pkg/trace"
)

// IssuerRegistry resolves an issuer_id to its persistent IssuerRecord. It
// replaces the ambient, process-wide correlation-id lookup the original
// issuer linked against with an explicit collaborator supplied at Client
// construction.
type IssuerRegistry interface {
	IssuerByID(ctx context.Context, issuerID string) (*IssuerRecord, error)
}

// Client is the orchestrating entry point: it wires OfferBuilder,
// SessionStore, RequestResolver, CredentialMatcher, HolderBindingExtractor,
// SignerDispatch, and VersionBridge behind four request-scoped methods:
// CreateOffer, GetCredentialOffer, HandleCredentialRequest, and IssueCNonce.
type Client struct {
	log    *logger.Log
	tracer *trace.Tracer

	store          SessionStore
	issuerRegistry IssuerRegistry

	offerBuilder  *OfferBuilder
	resolver      *RequestResolver
	matcher       *CredentialMatcher
	binding       *HolderBindingExtractor
	dispatch      *SignerDispatch
	version       *VersionBridge
	proofVerifier ProofVerifier

	cNonceTTL time.Duration
}

// ClientOptions carries the collaborators New needs beyond the ambient
// logger/tracer/store/registry: the host-supplied mapper, the signer
// registry, the optional remote DID resolver, and the format adapters.
type ClientOptions struct {
	Mapper         CredentialMapper
	SignerRegistry SignerRegistry
	DidResolver    DidResolver
	ProofVerifier  ProofVerifier
	W3C            W3cCredentialService
	SdJWT          SdJwtVcApi
	Mdoc           MdocApi
	CNonceTTL      time.Duration
}

// New wires the seven components into a Client. If opts.W3C is nil, a
// DefaultW3cCredentialService is used for the JwtVc format.
func New(ctx context.Context, store SessionStore, issuerRegistry IssuerRegistry, log *logger.Log, tracer *trace.Tracer, opts ClientOptions) (*Client, error) {
	w3c := opts.W3C
	if w3c == nil {
		w3c = NewDefaultW3cCredentialService(log, tracer)
	}

	cNonceTTL := opts.CNonceTTL
	if cNonceTTL <= 0 {
		cNonceTTL = 5 * time.Minute
	}

	return &Client{
		log:            log.New("client"),
		tracer:         tracer,
		store:          store,
		issuerRegistry: issuerRegistry,
		offerBuilder:   NewOfferBuilder(log, tracer),
		resolver:       NewRequestResolver(log, tracer, store),
		matcher:        NewCredentialMatcher(log, tracer),
		binding:        NewHolderBindingExtractor(log, tracer, opts.DidResolver),
		dispatch:       NewSignerDispatch(log, tracer, store, opts.Mapper, opts.SignerRegistry, w3c, opts.SdJWT, opts.Mdoc),
		version:        NewVersionBridge(log, tracer),
		proofVerifier:  opts.ProofVerifier,
		cNonceTTL:      cNonceTTL,
	}, nil
}

// CreateOffer builds a new credential offer for issuerID and persists the
// resulting session in state OfferCreated.
func (c *Client) CreateOffer(
	ctx context.Context,
	issuerID string,
	offeredCredentials []string,
	preAuthCfg PreAuthCfg,
	version Version,
	baseURI string,
) (*IssuanceSession, string, error) {
	ctx, span := c.tracer.Start(ctx, "issuance:client:create_offer")
	defer span.End()

	issuer, err := c.issuerRegistry.IssuerByID(ctx, issuerID)
	if err != nil {
		return nil, "", err
	}

	session, deepLink, err := c.offerBuilder.CreateOffer(ctx, issuer, offeredCredentials, preAuthCfg, version, baseURI)
	if err != nil {
		return nil, "", err
	}

	if err := c.store.Create(ctx, session); err != nil {
		return nil, "", err
	}

	return session, deepLink.String(), nil
}

// GetCredentialOffer returns the offer payload published at offerURI, the
// JSON a wallet receives when it dereferences the deep link's
// credential_offer_uri. The first retrieval advances the session from
// OfferCreated to OfferUriRetrieved; later retrievals are reads only.
func (c *Client) GetCredentialOffer(ctx context.Context, issuerID, offerURI string) (any, error) {
	ctx, span := c.tracer.Start(ctx, "issuance:client:get_credential_offer")
	defer span.End()

	session, err := c.store.FindByOfferURI(ctx, issuerID, offerURI)
	if err != nil {
		return nil, err
	}

	if session.State == StateOfferCreated {
		session.State = StateOfferUriRetrieved
		if err := c.store.Update(ctx, session); err != nil {
			return nil, err
		}
	}

	if session.CredentialOfferPayloadV11 != nil {
		return session.CredentialOfferPayloadV11, nil
	}
	return session.CredentialOfferPayload, nil
}

// HandleCredentialRequest runs RequestResolver, CredentialMatcher,
// HolderBindingExtractor, SignerDispatch, and VersionBridge.ProjectResponse
// in sequence for a single incoming credential request.
func (c *Client) HandleCredentialRequest(ctx context.Context, issuerID string, request *CredentialRequest) (*CredentialResponse, error) {
	ctx, span := c.tracer.Start(ctx, "issuance:client:handle_credential_request")
	defer span.End()

	session, err := c.resolver.FindSessionForRequest(ctx, issuerID, request)
	if err != nil {
		return nil, err
	}

	if err := c.resolver.ValidateForCredential(ctx, session, request, time.Now()); err != nil {
		return nil, err
	}

	issuer, err := c.issuerRegistry.IssuerByID(ctx, session.IssuerID)
	if err != nil {
		return nil, err
	}

	matched, err := c.matcher.Match(ctx, issuer, session, request)
	if err != nil {
		return nil, err
	}

	holderBinding, err := c.binding.ExtractBinding(ctx, request)
	if err != nil {
		return nil, err
	}

	if c.proofVerifier != nil {
		if err := c.proofVerifier.VerifyProof(ctx, request.Proof.JWT, holderBinding.Key, session.CNonce); err != nil {
			return nil, newError(ErrCodeInvalidProof, err)
		}
	}

	offer := session.CredentialOfferPayload

	response, err := c.dispatch.Dispatch(ctx, offer, session, request, holderBinding, matched)
	if err != nil {
		return nil, err
	}

	return c.version.ProjectResponse(ctx, session, request.Format, response), nil
}

// IssueCNonce mints a fresh c_nonce for session and persists its expiry,
// the timeout boundary governing a wallet's use of an access token's nonce.
// An empty nonce argument gets a generated one.
func (c *Client) IssueCNonce(ctx context.Context, session *IssuanceSession, nonce string) error {
	ctx, span := c.tracer.Start(ctx, "issuance:client:issue_c_nonce")
	defer span.End()

	if nonce == "" {
		generated, err := openid4vci.GenerateNonce(0)
		if err != nil {
			return err
		}
		nonce = generated
	}

	session.CNonce = nonce
	session.CNonceExpiresAt = time.Now().Add(c.cNonceTTL)
	session.State = StateAccessTokenCreated
	return c.store.Update(ctx, session)
}
