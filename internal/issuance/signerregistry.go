package issuance

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"oid4vci-issuer/pkg/model"
	"oid4vci-issuer/pkg/signing"

	"github.com/golang-jwt/jwt/v5"
)

// SingleKeySignerRegistry is a SignerRegistry over exactly one signing.Signer,
// the shape this issuer's config.yaml describes: one signing key per issuer
// process, software-backed or HSM-backed, selected at startup rather than
// looked up per request. SignerByRef ignores its ref argument, since there is
// only ever one key to return; a host fronting multiple signing keys behind
// one process would replace this with a ref-keyed map.
type SingleKeySignerRegistry struct {
	signer signing.Signer
}

// NewSingleKeySignerRegistry wraps signer as a SignerRegistry.
func NewSingleKeySignerRegistry(signer signing.Signer) *SingleKeySignerRegistry {
	return &SingleKeySignerRegistry{signer: signer}
}

// SignerByRef always returns the wrapped signer.
func (r *SingleKeySignerRegistry) SignerByRef(_ context.Context, _ string) (signing.Signer, error) {
	return r.signer, nil
}

// NewSignerFromConfig builds the signing.Signer a Client needs from the
// issuer's configuration: a PKCS#11-backed signer when cfg.PKCS11 is
// set, otherwise a software key loaded from cfg.SigningKeyPath.
func NewSignerFromConfig(cfg *model.Issuer) (signing.Signer, error) {
	if cfg.PKCS11 != nil {
		return signing.NewPKCS11Signer(&signing.PKCS11Config{
			ModulePath: cfg.PKCS11.ModulePath,
			SlotID:     cfg.PKCS11.SlotID,
			PIN:        cfg.PKCS11.PIN,
			KeyLabel:   cfg.PKCS11.KeyLabel,
			KeyID:      cfg.PKCS11.KeyID,
		})
	}

	keyBytes, err := os.ReadFile(cfg.SigningKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading signing key: %w", err)
	}
	if len(keyBytes) == 0 {
		return nil, model.ErrPrivateKeyEmpty
	}

	privateKey, err := parsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing signing key: %w", err)
	}

	return signing.NewSoftwareSigner(privateKey, cfg.Identifier)
}

// parsePrivateKey tries every private key encoding this issuer has been
// configured with in practice: PKCS8 first since it covers both RSA and
// ECDSA, then the format-specific fallbacks.
func parsePrivateKey(keyBytes []byte) (any, error) {
	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		switch key.(type) {
		case *rsa.PrivateKey, *ecdsa.PrivateKey:
			return key, nil
		}
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := jwt.ParseECPrivateKeyFromPEM(keyBytes); err == nil {
		return key, nil
	}
	if key, err := jwt.ParseRSAPrivateKeyFromPEM(keyBytes); err == nil {
		return key, nil
	}

	return nil, model.ErrPrivateKeyUnknownFormat
}
