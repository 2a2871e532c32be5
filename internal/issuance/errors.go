package issuance

import (
	"errors"
	"fmt"
)

// ErrorCode is the taxonomy of component-level failures a caller of
// internal/issuance can receive.
type ErrorCode string

const (
	ErrCodeInvalidOffer          ErrorCode = "InvalidOffer"
	ErrCodeInvalidState          ErrorCode = "InvalidState"
	ErrCodeMissingProof          ErrorCode = "MissingProof"
	ErrCodeInvalidProof          ErrorCode = "InvalidProof"
	ErrCodeMissingNonce          ErrorCode = "MissingNonce"
	ErrCodeNonceMismatch         ErrorCode = "NonceMismatch"
	ErrCodeNonceExpired          ErrorCode = "NonceExpired"
	ErrCodeNotOffered            ErrorCode = "NotOffered"
	ErrCodeNoMatchingOffer       ErrorCode = "NoMatchingOffer"
	ErrCodeFormatMismatch        ErrorCode = "FormatMismatch"
	ErrCodeAlreadyIssued         ErrorCode = "AlreadyIssued"
	ErrCodeSignerProducedNothing ErrorCode = "SignerProducedNothing"
	ErrCodeDeferredUnsupported   ErrorCode = "DeferredUnsupported"
	ErrCodeNotFound              ErrorCode = "NotFound"
	ErrCodeAmbiguousSession      ErrorCode = "AmbiguousSession"
	ErrCodeNoSupportedAlgorithm  ErrorCode = "NoSupportedAlgorithm"
	ErrCodeUnsupportedKidScheme  ErrorCode = "UnsupportedKidScheme"
	ErrCodeAmbiguousKid          ErrorCode = "AmbiguousKid"
)

// Error is the ambient error shape for this package: a taxonomy code plus
// the underlying cause. It is distinct from helpers.Error, which is the
// wire-level shape used by the rest of the ambient stack; the host's HTTP
// layer is responsible for translating one into the other.
type Error struct {
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError wraps err (which may be nil) with code.
func newError(code ErrorCode, err error) *Error {
	return &Error{Code: code, Err: err}
}

// HasCode reports whether err is an *Error (at any wrapping depth) carrying
// code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

var (
	errNonUniqueOfferedCredentials = errors.New("offered credential configuration ids must be pairwise unique")
	errEmptyOfferedCredentials     = errors.New("offered_credentials must be non-empty")
	errUnsupportedConfiguration    = errors.New("offered credential configuration id is not in the issuer's supported set")
	errTxCodeWithoutPIN            = errors.New("tx_code set while user_pin_required is false")

	errNoNonceInRequest = errors.New("no c_nonce found in top-level request, proof.c_nonce, or the decoded proof jwt's nonce claim")

	errSessionNotInRequestableState = errors.New("session is not in a state that accepts credential requests")
	errMissingProof                 = errors.New("credential_request.proof is required")
	errNonceMismatch                = errors.New("session c_nonce does not match the nonce extracted from the request")
	errNonceNotSet                  = errors.New("session c_nonce is not set")
	errNonceExpired                 = errors.New("session c_nonce_expires_at is in the past")

	errNoProofJWK           = errors.New("proof jwt header carries neither kid nor jwk")
	errUnsupportedKidScheme = errors.New("kid must start with did:")
	errAmbiguousKid         = errors.New("kid must contain a #fragment identifying a verification method")

	errNotOffered      = errors.New("credential_identifier does not name an offered configuration")
	errNoMatchingOffer = errors.New("no offered configuration matches the request's format and type")

	errFormatMismatch        = errors.New("sign options format does not agree with the request's format")
	errAlreadyIssued         = errors.New("configuration has already been issued in this session")
	errSignerProducedNothing = errors.New("signer returned an empty credential")
	errDeferredUnsupported   = errors.New("signer response carried acceptance_token or transaction_id; deferred issuance is not supported")
	errNoSupportedAlgorithm  = errors.New("signer has no supported algorithms")

	errAmbiguousSession = errors.New("more than one row matched the query")
	errSessionNotFound  = errors.New("no session found for the given query")

	errDuplicateOfferURI = errors.New("a session already exists for this (issuer_id, credential_offer_uri)")
	errDuplicateCNonce   = errors.New("a live session already exists for this (issuer_id, c_nonce)")
)
