package openid4vci

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// CredentialRequest https://openid.net/specs/openid-4-verifiable-credential-issuance-1_0.html#name-credential-request
type CredentialRequest struct {
	// Format REQUIRED when the credential_identifiers parameter was not returned from the Token Response. It MUST NOT be used otherwise. It is a String that determines the format of the Credential to be issued, which may determine the type and any other information related to the Credential to be issued. Credential Format Profiles consist of the Credential format specific parameters that are defined in Appendix A. When this parameter is used, the credential_identifier Credential Request parameter MUST NOT be present.
	Format string `json:"format"`

	// Proof OPTIONAL. Object containing the proof of possession of the cryptographic key material the issued Credential would be bound to. The proof object is REQUIRED if the proof_types_supported parameter is non-empty and present in the credential_configurations_supported parameter of the Issuer metadata for the requested Credential. The proof object MUST contain the following:
	Proof *Proof `json:"proof"`

	// REQUIRED when credential_identifiers parameter was returned from the Token Response. It MUST NOT be used otherwise. It is a String that identifies a Credential that is being requested to be issued. When this parameter is used, the format parameter and any other Credential format specific parameters such as those defined in Appendix A MUST NOT be present.
	CredentialIdentifier string `json:"credential_identifier"`
}

// CredentialResponse https://openid.net/specs/openid-4-verifiable-credential-issuance-1_0.html#name-credential-response
type CredentialResponse struct {
	// Credentials OPTIONAL. Contains an array of issued Credentials. The values in the array MAY be a string or an object, depending on the Credential Format. See Appendix A for the Credential Format-specific encoding requirements.
	Credentials []Credential `json:"credentials,omitempty"`

	// CNonce: OPTIONAL. String containing a nonce to be used to create a proof of possession of key material when requesting a Credential (see Section 7.2). When received, the Wallet MUST use this nonce value for its subsequent Credential Requests until the Credential Issuer provides a fresh nonce.
	CNonce string `json:"c_nonce,omitempty"`

	// CNonceExpiresIn: OPTIONAL. Number denoting the lifetime in seconds of the c_nonce.
	CNonceExpiresIn int `json:"c_nonce_expires_in,omitempty"`
}

type Credential struct {
	Credential string `json:"credential" validate:"required"`
}

// JWK holds the JSON Web Key
type JWK struct {
	CRV string `json:"crv" validate:"required"`
	KID string `json:"kid" validate:"required"`
	KTY string `json:"kty" validate:"required"`
	X   string `json:"x" validate:"required"`
	Y   string `json:"y" validate:"required"`
	D   string `json:"d" validate:"required"`
}

// Proof https://openid.net/specs/openid-4-verifiable-credential-issuance-1_0.html#name-credential-request
type Proof struct {
	// ProofType REQUIRED. String denoting the key proof type. The value of this parameter determines other parameters in the key proof object and its respective processing rules. Key proof types defined in this specification can be found in Section 7.2.1.
	ProofType string `json:"proof_type" validate:"required,oneof=jwt ldp_vp cwt"`

	JWT         string `json:"jwt,omitempty"`
	LDPVP       string `json:"ldp_vp,omitempty"`
	Attestation string `json:"attestation"`

	// CNonce carries the c_nonce at the proof level for wallets that echo it
	// here instead of (or in addition to) the top-level credential request
	// field or the signed JWT's nonce claim.
	CNonce string `json:"c_nonce,omitempty"`
}

func (p *Proof) ExtractJWK() (*JWK, error) {
	if p.JWT == "" {
		return nil, fmt.Errorf("JWT is empty")
	}

	headerBase64 := strings.Split(p.JWT, ".")[0]

	headerByte, err := base64.RawStdEncoding.DecodeString(headerBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode JWT header: %w", err)
	}

	headerMap := map[string]any{}
	if err := json.Unmarshal(headerByte, &headerMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JWT header: %w", err)
	}

	jwkMap, ok := headerMap["jwk"]
	if !ok {
		return nil, fmt.Errorf("jwk not found in JWT header")
	}

	jwkByte, err := json.Marshal(jwkMap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JWK: %w", err)
	}

	jwk := &JWK{}
	if err := json.Unmarshal(jwkByte, jwk); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JWK: %w", err)
	}

	return jwk, nil
}
