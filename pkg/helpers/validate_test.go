package helpers

import (
	"testing"

	"oid4vci-issuer/pkg/model"

	"github.com/stretchr/testify/assert"
)

func TestValidationIssuer(t *testing.T) {
	tts := []struct {
		name    string
		have    *model.Issuer
		wantErr bool
	}{
		{
			name:    "empty",
			have:    &model.Issuer{},
			wantErr: true,
		},
		{
			name: "missing identifier",
			have: &model.Issuer{
				APIServer:      model.APIServer{Addr: ":8080"},
				SigningKeyPath: "/etc/issuer/signing.pem",
				JWTAttribute: model.JWTAttribute{
					Issuer:                   "https://issuer.example.com",
					VerifiableCredentialType: "https://credential.example.com/identity_credential",
				},
				PreAuthorizedCodeTTL: 300,
				CNonceTTL:            300,
			},
			wantErr: true,
		},
		{
			name: "ok",
			have: &model.Issuer{
				APIServer:      model.APIServer{Addr: ":8080"},
				Identifier:     "https://issuer.example.com",
				SigningKeyPath: "/etc/issuer/signing.pem",
				JWTAttribute: model.JWTAttribute{
					Issuer:                   "https://issuer.example.com",
					VerifiableCredentialType: "https://credential.example.com/identity_credential",
				},
				PreAuthorizedCodeTTL: 300,
				CNonceTTL:            300,
			},
			wantErr: false,
		},
	}

	for _, tt := range tts {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckSimple(tt.have)
			if tt.wantErr {
				assert.Error(t, got)
				return
			}
			assert.NoError(t, got)
		})
	}
}

func TestNewErrorFromValidationError(t *testing.T) {
	got := CheckSimple(&model.Issuer{})
	assert.Error(t, got)

	asErr, ok := got.(*Error)
	assert.True(t, ok)
	assert.Equal(t, "validation_error", asErr.Title)
	assert.NotEmpty(t, asErr.Err)
}
