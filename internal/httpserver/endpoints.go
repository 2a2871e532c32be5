package httpserver

import (
	"net/http"
	"net/url"

	"oid4vci-issuer/internal/issuance"
	"oid4vci-issuer/pkg/helpers"
	"oid4vci-issuer/pkg/openid4vci"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
)

func (s *Service) endpointHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// createOfferRequest is the wire shape of a POST .../credential-offer body.
type createOfferRequest struct {
	OfferedCredentials []string           `json:"offered_credentials" validate:"required,min=1"`
	UserPINRequired    *bool              `json:"user_pin_required,omitempty"`
	TxCode             *openid4vci.TXCode `json:"tx_code,omitempty"`
	Version            string             `json:"version" validate:"required,oneof=v1.draft11 v1.draft13"`
}

type createOfferResponse struct {
	SessionID string         `json:"session_id"`
	OfferURI  string         `json:"offer_uri"`
	QR        *openid4vci.QR `json:"qr,omitempty"`
}

func (s *Service) endpointCreateOffer(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "httpserver:endpoint_create_offer")
	defer span.End()

	req := &createOfferRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": helpers.NewErrorFromError(err)})
		return
	}

	session, offerURI, err := s.client.CreateOffer(
		ctx,
		c.Param("issuer_id"),
		req.OfferedCredentials,
		issuance.PreAuthCfg{UserPINRequired: req.UserPINRequired, TxCode: req.TxCode},
		issuance.Version(req.Version),
		s.config.Common.QR.BaseURL,
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.JSON(statusForError(err), gin.H{"error": helpers.NewErrorFromError(err)})
		return
	}

	qr, err := issuance.OfferURI(offerURI).QR(s.config.Common.QR.RecoveryLevel, s.config.Common.QR.Size)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": helpers.NewErrorFromError(err)})
		return
	}

	c.JSON(http.StatusOK, createOfferResponse{SessionID: session.ID, OfferURI: offerURI, QR: qr})
}

// endpointGetCredentialOffer serves the JSON offer payload the deep link's
// credential_offer_uri points at. The served URI is reconstructed from the
// configured base URL, the same way CreateOffer minted it.
func (s *Service) endpointGetCredentialOffer(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "httpserver:endpoint_get_credential_offer")
	defer span.End()

	base, err := url.Parse(s.config.Common.QR.BaseURL)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": helpers.NewErrorFromError(err)})
		return
	}
	offerURI := base.JoinPath("credential-offer", c.Param("credential_offer_uuid")).String()

	payload, err := s.client.GetCredentialOffer(ctx, c.Param("issuer_id"), offerURI)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.JSON(statusForError(err), gin.H{"error": helpers.NewErrorFromError(err)})
		return
	}

	c.JSON(http.StatusOK, payload)
}

func (s *Service) endpointCredential(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "httpserver:endpoint_credential")
	defer span.End()

	req := &issuance.CredentialRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": helpers.NewErrorFromError(err)})
		return
	}

	response, err := s.client.HandleCredentialRequest(ctx, c.Param("issuer_id"), req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		protocolErr := credentialEndpointError(err)
		c.JSON(openid4vci.StatusCode(protocolErr), protocolErr)
		return
	}

	c.JSON(http.StatusOK, response)
}

// credentialEndpointError translates the issuance error taxonomy into the
// OID4VCI protocol error codes a wallet acts on at the credential endpoint.
// Wallet-correctable failures come back as invalid_proof/invalid_nonce/
// unsupported_credential_type so the wallet can retry with a corrected
// request; everything else is the issuer's problem and says so.
func credentialEndpointError(err error) *openid4vci.Error {
	switch {
	case issuance.HasCode(err, issuance.ErrCodeMissingProof),
		issuance.HasCode(err, issuance.ErrCodeInvalidProof),
		issuance.HasCode(err, issuance.ErrCodeUnsupportedKidScheme),
		issuance.HasCode(err, issuance.ErrCodeAmbiguousKid):
		return &openid4vci.Error{Err: openid4vci.ErrInvalidProof, ErrorDescription: err.Error()}
	case issuance.HasCode(err, issuance.ErrCodeMissingNonce),
		issuance.HasCode(err, issuance.ErrCodeNonceMismatch),
		issuance.HasCode(err, issuance.ErrCodeNonceExpired):
		return &openid4vci.Error{Err: openid4vci.ErrInvalidNonce, ErrorDescription: err.Error()}
	case issuance.HasCode(err, issuance.ErrCodeNotOffered),
		issuance.HasCode(err, issuance.ErrCodeNoMatchingOffer):
		return &openid4vci.Error{Err: openid4vci.ErrUnsupportedCredentialType, ErrorDescription: err.Error()}
	case issuance.HasCode(err, issuance.ErrCodeFormatMismatch):
		return &openid4vci.Error{Err: openid4vci.ErrUnsupportedCredentialFormat, ErrorDescription: err.Error()}
	case issuance.HasCode(err, issuance.ErrCodeInvalidState),
		issuance.HasCode(err, issuance.ErrCodeAlreadyIssued),
		issuance.HasCode(err, issuance.ErrCodeNotFound),
		issuance.HasCode(err, issuance.ErrCodeAmbiguousSession):
		return &openid4vci.Error{Err: openid4vci.ErrInvalidCredentialRequest, ErrorDescription: err.Error()}
	default:
		return &openid4vci.Error{Err: openid4vci.ErrServerError, ErrorDescription: err.Error()}
	}
}

// statusForError maps the issuance package's error taxonomy onto the HTTP
// status codes an OID4VCI wallet expects: a bad nonce, an unmatched
// configuration, or an unresolvable session are the wallet's own mistake,
// never the issuer's.
func statusForError(err error) int {
	for _, code := range []issuance.ErrorCode{
		issuance.ErrCodeInvalidOffer,
		issuance.ErrCodeMissingNonce,
		issuance.ErrCodeNonceExpired,
		issuance.ErrCodeNonceMismatch,
		issuance.ErrCodeMissingProof,
		issuance.ErrCodeInvalidProof,
		issuance.ErrCodeInvalidState,
		issuance.ErrCodeNoMatchingOffer,
		issuance.ErrCodeNotOffered,
		issuance.ErrCodeAlreadyIssued,
		issuance.ErrCodeUnsupportedKidScheme,
		issuance.ErrCodeAmbiguousKid,
		issuance.ErrCodeFormatMismatch,
	} {
		if issuance.HasCode(err, code) {
			return http.StatusBadRequest
		}
	}
	if issuance.HasCode(err, issuance.ErrCodeNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
