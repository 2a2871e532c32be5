// Package didkey provides resolution of self-contained DID methods
// (did:key, did:jwk) and raw multikey-encoded public keys, for use by the
// HolderBindingExtractor when the proof JWT's kid header references one of
// these methods. Resolution of any other DID method is delegated by the
// caller to an external DidResolver collaborator.
package didkey

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"
)

// Resolver resolves public keys from verification method identifiers.
type Resolver interface {
	ResolveEd25519(verificationMethod string) (ed25519.PublicKey, error)
}

// ECDSAResolver extends Resolver with ECDSA key resolution.
type ECDSAResolver interface {
	Resolver
	ResolveECDSA(verificationMethod string) (*ecdsa.PublicKey, error)
}

// MultiResolver tries each of a set of resolvers in order until one succeeds.
type MultiResolver struct {
	resolvers []Resolver
}

// NewMultiResolver creates a resolver that tries each resolver in order.
func NewMultiResolver(resolvers ...Resolver) *MultiResolver {
	return &MultiResolver{resolvers: resolvers}
}

// ResolveEd25519 tries each resolver until one succeeds.
func (m *MultiResolver) ResolveEd25519(verificationMethod string) (ed25519.PublicKey, error) {
	var errs []error
	for _, resolver := range m.resolvers {
		key, err := resolver.ResolveEd25519(verificationMethod)
		if err == nil {
			return key, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no resolvers configured")
	}
	return nil, fmt.Errorf("all resolvers failed: %v", errs[len(errs)-1])
}

// ResolveECDSA tries each ECDSA-capable resolver until one succeeds.
func (m *MultiResolver) ResolveECDSA(verificationMethod string) (*ecdsa.PublicKey, error) {
	var errs []error
	found := false
	for _, resolver := range m.resolvers {
		ecdsaResolver, ok := resolver.(ECDSAResolver)
		if !ok {
			continue
		}
		found = true
		key, err := ecdsaResolver.ResolveECDSA(verificationMethod)
		if err == nil {
			return key, nil
		}
		errs = append(errs, err)
	}
	if !found {
		return nil, fmt.Errorf("no ECDSA-capable resolvers configured")
	}
	return nil, fmt.Errorf("all ECDSA resolvers failed: %v", errs[len(errs)-1])
}

// LocalResolver resolves keys encoded directly in the verification method
// identifier: did:key, did:jwk, and raw multibase-encoded multikeys.
type LocalResolver struct{}

// NewLocalResolver creates a resolver that handles self-contained key formats.
func NewLocalResolver() *LocalResolver {
	return &LocalResolver{}
}

// CanResolveLocally reports whether a verification method is self-contained
// (resolvable without contacting an external DID registry or resolver).
func CanResolveLocally(verificationMethod string) bool {
	return strings.HasPrefix(verificationMethod, "did:key:") ||
		strings.HasPrefix(verificationMethod, "did:jwk:") ||
		strings.HasPrefix(verificationMethod, "z") ||
		strings.HasPrefix(verificationMethod, "u")
}

// ResolveEd25519 extracts an Ed25519 key from a local verification method.
func (l *LocalResolver) ResolveEd25519(verificationMethod string) (ed25519.PublicKey, error) {
	switch {
	case strings.HasPrefix(verificationMethod, "did:key:"):
		return l.resolveDidKeyEd25519(verificationMethod)
	case strings.HasPrefix(verificationMethod, "did:jwk:"):
		return l.resolveDidJwkEd25519(verificationMethod)
	case strings.HasPrefix(verificationMethod, "u"), strings.HasPrefix(verificationMethod, "z"):
		return decodeMultikeyEd25519(verificationMethod)
	default:
		return nil, fmt.Errorf("unsupported verification method format: %s", verificationMethod)
	}
}

// ResolveECDSA extracts an ECDSA key from a local verification method.
func (l *LocalResolver) ResolveECDSA(verificationMethod string) (*ecdsa.PublicKey, error) {
	switch {
	case strings.HasPrefix(verificationMethod, "did:key:"):
		return l.resolveDidKeyECDSA(verificationMethod)
	case strings.HasPrefix(verificationMethod, "did:jwk:"):
		return l.resolveDidJwkECDSA(verificationMethod)
	case strings.HasPrefix(verificationMethod, "u"), strings.HasPrefix(verificationMethod, "z"):
		return decodeMultikeyECDSA(verificationMethod)
	default:
		return nil, fmt.Errorf("unsupported verification method format: %s", verificationMethod)
	}
}

func (l *LocalResolver) resolveDidKeyEd25519(didKey string) (ed25519.PublicKey, error) {
	multikey, err := didKeyMultikey(didKey)
	if err != nil {
		return nil, err
	}
	return decodeMultikeyEd25519(multikey)
}

func (l *LocalResolver) resolveDidKeyECDSA(didKey string) (*ecdsa.PublicKey, error) {
	multikey, err := didKeyMultikey(didKey)
	if err != nil {
		return nil, err
	}
	return decodeMultikeyECDSA(multikey)
}

func didKeyMultikey(didKey string) (string, error) {
	withoutPrefix := strings.TrimPrefix(didKey, "did:key:")
	parts := strings.SplitN(withoutPrefix, "#", 2)
	if parts[0] == "" {
		return "", fmt.Errorf("invalid did:key format: %s", didKey)
	}
	return parts[0], nil
}

// decodeMultikeyEd25519 decodes a multibase-encoded Ed25519 public key.
// Multikey format: multibase(varint-multicodec || raw-key-bytes). Ed25519
// public key multicodec is 0xed.
func decodeMultikeyEd25519(multikey string) (ed25519.PublicKey, error) {
	keyBytes, err := decodeMultibaseOrBase64URL(multikey)
	if err != nil {
		return nil, err
	}

	if len(keyBytes) < 3 {
		return nil, fmt.Errorf("multikey too short: expected at least 3 bytes, got %d", len(keyBytes))
	}

	multicodec, bytesRead := binary.Uvarint(keyBytes)
	if bytesRead <= 0 {
		return nil, fmt.Errorf("failed to decode multicodec varint")
	}
	if multicodec != 0xed {
		return nil, fmt.Errorf("unsupported key type: multicodec 0x%x (expected 0xed for Ed25519)", multicodec)
	}

	pubKeyBytes := keyBytes[bytesRead:]
	if len(pubKeyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid Ed25519 public key size: got %d bytes, expected %d", len(pubKeyBytes), ed25519.PublicKeySize)
	}

	return ed25519.PublicKey(pubKeyBytes), nil
}

func decodeMultibaseOrBase64URL(encoded string) ([]byte, error) {
	if strings.HasPrefix(encoded, "z") {
		_, decoded, err := multibase.Decode(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base58-btc multikey: %w", err)
		}
		return decoded, nil
	}

	if strings.HasPrefix(encoded, "u") {
		decoded, err := base64.RawURLEncoding.DecodeString(encoded[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64url multikey: %w", err)
		}
		return decoded, nil
	}

	return nil, fmt.Errorf("unsupported multibase prefix: %c", encoded[0])
}

// resolveDidJwkEd25519 extracts an Ed25519 public key from a did:jwk identifier.
func (l *LocalResolver) resolveDidJwkEd25519(didJwk string) (ed25519.PublicKey, error) {
	jwk, err := parseDidJwk(didJwk)
	if err != nil {
		return nil, err
	}
	return JWKToEd25519(jwk)
}

// resolveDidJwkECDSA extracts an ECDSA public key from a did:jwk identifier.
func (l *LocalResolver) resolveDidJwkECDSA(didJwk string) (*ecdsa.PublicKey, error) {
	jwk, err := parseDidJwk(didJwk)
	if err != nil {
		return nil, err
	}
	return JWKToECDSA(jwk)
}

// StaticResolver is a simple key->value resolver, useful in tests and for
// issuers that pin a small, fixed set of known holder keys.
type StaticResolver struct {
	ed25519Keys map[string]ed25519.PublicKey
	ecdsaKeys   map[string]*ecdsa.PublicKey
}

// NewStaticResolver creates a resolver with an empty static key map.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{
		ed25519Keys: make(map[string]ed25519.PublicKey),
		ecdsaKeys:   make(map[string]*ecdsa.PublicKey),
	}
}

// AddKey adds an Ed25519 key to the static resolver.
func (s *StaticResolver) AddKey(verificationMethod string, publicKey ed25519.PublicKey) {
	s.ed25519Keys[verificationMethod] = publicKey
}

// AddECDSAKey adds an ECDSA key to the static resolver.
func (s *StaticResolver) AddECDSAKey(verificationMethod string, publicKey *ecdsa.PublicKey) {
	s.ecdsaKeys[verificationMethod] = publicKey
}

// ResolveEd25519 looks up the key in the static map.
func (s *StaticResolver) ResolveEd25519(verificationMethod string) (ed25519.PublicKey, error) {
	key, ok := s.ed25519Keys[verificationMethod]
	if !ok {
		return nil, fmt.Errorf("key not found: %s", verificationMethod)
	}
	return key, nil
}

// ResolveECDSA looks up an ECDSA key in the static map.
func (s *StaticResolver) ResolveECDSA(verificationMethod string) (*ecdsa.PublicKey, error) {
	key, ok := s.ecdsaKeys[verificationMethod]
	if !ok {
		return nil, fmt.Errorf("ECDSA key not found: %s", verificationMethod)
	}
	return key, nil
}

// ExtractDIDFromVerificationMethod strips the fragment from a verification
// method id, e.g. "did:key:z6Mk...#key-1" -> "did:key:z6Mk...".
func ExtractDIDFromVerificationMethod(verificationMethod string) string {
	if idx := strings.Index(verificationMethod, "#"); idx > 0 {
		return verificationMethod[:idx]
	}
	return verificationMethod
}

// ExtractFragmentFromVerificationMethod returns the fragment of a
// verification method id, e.g. "did:key:z6Mk...#key-1" -> "key-1".
func ExtractFragmentFromVerificationMethod(verificationMethod string) string {
	if idx := strings.Index(verificationMethod, "#"); idx >= 0 && idx < len(verificationMethod)-1 {
		return verificationMethod[idx+1:]
	}
	return ""
}
