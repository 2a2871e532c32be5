package didkey

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// JWKToEd25519 converts a JSON Web Key (as a decoded map, kty=OKP, crv=Ed25519)
// into an ed25519.PublicKey.
func JWKToEd25519(jwk map[string]any) (ed25519.PublicKey, error) {
	kty, _ := jwk["kty"].(string)
	if kty != "OKP" {
		return nil, fmt.Errorf("unsupported kty for Ed25519: %s", kty)
	}

	crv, _ := jwk["crv"].(string)
	if crv != "Ed25519" {
		return nil, fmt.Errorf("unsupported crv for Ed25519: %s", crv)
	}

	x, _ := jwk["x"].(string)
	if x == "" {
		return nil, fmt.Errorf("jwk missing x coordinate")
	}

	keyBytes, err := base64.RawURLEncoding.DecodeString(x)
	if err != nil {
		return nil, fmt.Errorf("failed to decode x coordinate: %w", err)
	}

	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid Ed25519 key size: got %d, expected %d", len(keyBytes), ed25519.PublicKeySize)
	}

	return ed25519.PublicKey(keyBytes), nil
}

// JWKToECDSA converts a JSON Web Key (as a decoded map, kty=EC) into an
// *ecdsa.PublicKey. Supports P-256, P-384, and P-521.
func JWKToECDSA(jwk map[string]any) (*ecdsa.PublicKey, error) {
	kty, _ := jwk["kty"].(string)
	if kty != "EC" {
		return nil, fmt.Errorf("unsupported kty for ECDSA: %s", kty)
	}

	crv, _ := jwk["crv"].(string)
	curve, err := curveFromJWKCrv(crv)
	if err != nil {
		return nil, err
	}

	xStr, _ := jwk["x"].(string)
	yStr, _ := jwk["y"].(string)
	if xStr == "" || yStr == "" {
		return nil, fmt.Errorf("jwk missing x or y coordinate")
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}

func curveFromJWKCrv(crv string) (elliptic.Curve, error) {
	switch crv {
	case "P-256":
		return elliptic.P256(), nil
	case "P-384":
		return elliptic.P384(), nil
	case "P-521":
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("unsupported crv: %s", crv)
	}
}

// parseDidJwk extracts and decodes the JWK from a did:jwk identifier.
// did:jwk format: did:jwk:<base64url-encoded-JWK>#<optional-fragment>
func parseDidJwk(didJwk string) (map[string]any, error) {
	withoutPrefix := strings.TrimPrefix(didJwk, "did:jwk:")
	parts := strings.SplitN(withoutPrefix, "#", 2)
	if parts[0] == "" {
		return nil, fmt.Errorf("invalid did:jwk format: %s", didJwk)
	}
	encodedJwk := parts[0]

	jwkBytes, err := base64.RawURLEncoding.DecodeString(encodedJwk)
	if err != nil {
		jwkBytes, err = base64.URLEncoding.DecodeString(encodedJwk)
		if err != nil {
			return nil, fmt.Errorf("failed to decode did:jwk: %w", err)
		}
	}

	var jwk map[string]any
	if err := json.Unmarshal(jwkBytes, &jwk); err != nil {
		return nil, fmt.Errorf("failed to parse JWK JSON: %w", err)
	}

	return jwk, nil
}

// decodeMultikeyECDSA decodes a multibase-encoded ECDSA public key in
// compressed-point multicodec form. P-256 multicodec 0x1200 is varint-encoded
// as 0x80 0x24; P-384 multicodec 0x1201 is varint-encoded as 0x81 0x24.
func decodeMultikeyECDSA(multikey string) (*ecdsa.PublicKey, error) {
	decoded, err := decodeMultibaseOrBase64URL(multikey)
	if err != nil {
		return nil, err
	}

	if len(decoded) < 3 {
		return nil, fmt.Errorf("multikey too short")
	}

	var curve elliptic.Curve
	var keyData []byte

	switch {
	case decoded[0] == 0x80 && decoded[1] == 0x24:
		curve = elliptic.P256()
		keyData = decoded[2:]
	case decoded[0] == 0x81 && decoded[1] == 0x24:
		curve = elliptic.P384()
		keyData = decoded[2:]
	default:
		return nil, fmt.Errorf("unrecognized ECDSA multicodec: 0x%02x 0x%02x", decoded[0], decoded[1])
	}

	x, y := elliptic.UnmarshalCompressed(curve, keyData)
	if x == nil {
		return nil, fmt.Errorf("failed to unmarshal compressed ECDSA point")
	}

	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}
