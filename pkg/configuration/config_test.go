package configuration

import (
	"context"
	"fmt"
	"os"
	"testing"

	"oid4vci-issuer/pkg/model"

	"github.com/creasty/defaults"
	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v2"
)

var mockConfig = []byte(`
---
common:
  production: false
  mongo:
    uri: mongodb://localhost:27017
  tracing:
    addr: localhost:4318
    type: jaeger
  qr:
    base_url: https://issuer.example.com
    recovery_level: 2
    size: 256
issuer:
  api_server:
    addr: :8080
  identifier: https://issuer.example.com
  signing_key_path: /etc/oid4vci-issuer/signing.pem
  jwt_attribute:
    issuer: https://issuer.example.com
    verifiable_credential_type: https://credential.example.com/identity_credential
  pre_authorized_code_ttl: 300
  c_nonce_ttl: 300
`)

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	tts := []struct {
		name           string
		setEnvVariable bool
		wantErr        bool
	}{
		{
			name:           "OK",
			setEnvVariable: true,
			wantErr:        false,
		},
		{
			name:           "missing env var",
			setEnvVariable: false,
			wantErr:        true,
		},
	}

	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("VC_CONFIG_YAML")

			path := fmt.Sprintf("%s/%s.yaml", tempDir, tt.name)
			if err := os.WriteFile(path, mockConfig, 0o600); err != nil {
				assert.NoError(t, err)
			}
			if tt.setEnvVariable {
				t.Setenv("VC_CONFIG_YAML", path)
			}

			cfg, err := New(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)

			want := &model.Cfg{}
			assert.NoError(t, defaultsAndUnmarshal(want, mockConfig))

			assert.Equal(t, want, cfg)
		})
	}
}

func defaultsAndUnmarshal(cfg *model.Cfg, raw []byte) error {
	if err := defaults.Set(cfg); err != nil {
		return err
	}
	return yaml.Unmarshal(raw, cfg)
}
