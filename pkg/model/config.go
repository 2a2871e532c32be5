package model

// APIServer holds the api server configuration
type APIServer struct {
	Addr       string            `yaml:"addr" validate:"required"`
	PublicKeys map[string]string `yaml:"public_keys"`
	TLS        TLS               `yaml:"tls" validate:"omitempty"`
	BasicAuth  BasicAuth         `yaml:"basic_auth"`
}

// TLS holds the tls configuration
type TLS struct {
	Enabled      bool   `yaml:"enabled"`
	CertFilePath string `yaml:"cert_file_path" validate:"required"`
	KeyFilePath  string `yaml:"key_file_path" validate:"required"`
}

// BasicAuth holds the basic auth configuration
type BasicAuth struct {
	Users   map[string]string `yaml:"users"`
	Enabled bool              `yaml:"enabled"`
}

// Mongo holds the database configuration backing the issuance session store
type Mongo struct {
	URI string `yaml:"uri" validate:"required"`
}

// Log holds the log configuration
type Log struct {
	Level      string `yaml:"level"`
	FolderPath string `yaml:"folder_path"`
}

// OTEL holds the opentelemetry configuration
type OTEL struct {
	Addr    string `yaml:"addr" validate:"required"`
	Type    string `yaml:"type" validate:"required"`
	Timeout int64  `yaml:"timeout" default:"10"`
}

// QRCfg holds the credential offer QR code rendering configuration
type QRCfg struct {
	BaseURL       string `yaml:"base_url" validate:"required"`
	RecoveryLevel int    `yaml:"recovery_level" validate:"required,min=0,max=3"`
	Size          int    `yaml:"size" validate:"required"`
}

// Common holds the configuration shared by every component of the issuer
type Common struct {
	HTTPProxy  string `yaml:"http_proxy"`
	Production bool   `yaml:"production"`
	Log        Log    `yaml:"log"`
	Mongo      Mongo  `yaml:"mongo" validate:"required"`
	Tracing    OTEL   `yaml:"tracing" validate:"required"`
	QR         QRCfg  `yaml:"qr" validate:"required"`
}

// PKCS11 holds the configuration for a hardware-backed signing key, used
// instead of SigningKeyPath when the issuer's signing key lives in an HSM.
type PKCS11 struct {
	ModulePath string `yaml:"module_path" validate:"required"`
	SlotID     uint   `yaml:"slot_id"`
	PIN        string `yaml:"pin" validate:"required"`
	KeyLabel   string `yaml:"key_label" validate:"required_without=KeyID"`
	KeyID      string `yaml:"key_id" validate:"required_without=KeyLabel"`
}

// JWTAttribute holds the claims used when signing issued credentials/metadata.
type JWTAttribute struct {
	// Issuer of the token example: https://issuer.sunet.se
	Issuer string `yaml:"issuer" validate:"required"`

	// EnableNotBefore states the time not before which the token is valid
	EnableNotBefore bool `yaml:"enable_not_before"`

	// Valid duration of the token in seconds
	ValidDuration int64 `yaml:"valid_duration" validate:"required_with=EnableNotBefore"`

	// VerifiableCredentialType URL example: https://credential.sunet.se/identity_credential
	VerifiableCredentialType string `yaml:"verifiable_credential_type" validate:"required"`

	// Status status of the Verifiable Credential
	Status string `yaml:"status"`
}

// Issuer holds the issuer service configuration
type Issuer struct {
	APIServer            APIServer    `yaml:"api_server" validate:"required"`
	Identifier           string       `yaml:"identifier" validate:"required"`
	SigningKeyPath       string       `yaml:"signing_key_path" validate:"required_without=PKCS11"`
	PKCS11               *PKCS11      `yaml:"pkcs11,omitempty"`
	JWTAttribute         JWTAttribute `yaml:"jwt_attribute" validate:"required"`
	PreAuthorizedCodeTTL int64        `yaml:"pre_authorized_code_ttl" validate:"required"`
	CNonceTTL            int64        `yaml:"c_nonce_ttl" validate:"required"`
}

// Cfg is the main configuration structure for this application
type Cfg struct {
	Common Common `yaml:"common"`
	Issuer Issuer `yaml:"issuer" validate:"required"`
}
