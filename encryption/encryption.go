// Package encryption protects template credentials at rest.
//
// Sites can pull their template from private git hosts; the tokens and SSH
// keys for that live in the site database, fernet-encrypted under the key
// from DEPLOYER_ENCRYPTION_KEY.
package encryption

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"

	"github.com/webalive/deployer/domain"
)

// credentialTTL bounds fernet token age at verification time. Stored
// credentials must never expire on their own, so the bound is effectively
// infinite.
const credentialTTL = 100 * 365 * 24 * time.Hour

// EncryptionService encrypts and decrypts sensitive strings with a single
// fernet key.
type EncryptionService struct {
	key *fernet.Key
}

// NewEncryptionService parses a base64 fernet key and returns a service
// bound to it.
func NewEncryptionService(keyString string) (*EncryptionService, error) {
	if keyString == "" {
		return nil, fmt.Errorf("encryption key cannot be empty")
	}

	key, err := fernet.DecodeKey(keyString)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}

	return &EncryptionService{key: key}, nil
}

// Encrypt returns a base64 fernet token for plaintext. Empty input stays
// empty so optional columns round-trip without fake tokens.
func (e *EncryptionService) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	token, err := fernet.EncryptAndSign([]byte(plaintext), e.key)
	if err != nil {
		return "", fmt.Errorf("encryption failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(token), nil
}

// Decrypt reverses Encrypt. Tampered or foreign tokens fail verification
// rather than producing garbage plaintext.
func (e *EncryptionService) Decrypt(token string) (string, error) {
	if token == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("invalid token format: %w", err)
	}

	plaintext := fernet.VerifyAndDecrypt(raw, credentialTTL, []*fernet.Key{e.key})
	if plaintext == nil {
		return "", fmt.Errorf("failed to decrypt token: invalid or expired")
	}

	return string(plaintext), nil
}

// templateAuthBlob is the JSON form of template credentials inside the
// encrypted column. Both methods are stored; the auth_type column decides
// which one is live.
type templateAuthBlob struct {
	HTTP *domain.TemplateHTTPAuthConfig `json:"http,omitempty"`
	SSH  *domain.TemplateSSHAuthConfig  `json:"ssh,omitempty"`
}

// EncryptTemplateAuthConfig flattens auth into the auth_type column value
// and an encrypted credential blob. A nil or empty config yields empty
// strings, meaning the site row carries no credentials.
func (e *EncryptionService) EncryptTemplateAuthConfig(
	auth *domain.TemplateAuthConfig,
) (authType string, encryptedCredentials string, err error) {
	if auth == nil || (auth.HTTPAuth == nil && auth.SSHAuth == nil) {
		return "", "", nil
	}

	payload, err := json.Marshal(templateAuthBlob{HTTP: auth.HTTPAuth, SSH: auth.SSHAuth})
	if err != nil {
		return "", "", fmt.Errorf("failed to serialize credentials: %w", err)
	}

	token, err := e.Encrypt(string(payload))
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	// SSH wins the auth_type column when both methods are present.
	kind := domain.TemplateAuthTypeHTTP
	if auth.SSHAuth != nil {
		kind = domain.TemplateAuthTypeSSH
	}
	return kind.String(), token, nil
}

// DecryptTemplateAuthConfig restores the credentials selected by authType
// from the encrypted blob. Empty inputs mean no credentials are stored.
func (e *EncryptionService) DecryptTemplateAuthConfig(
	authType string,
	encryptedCredentials string,
) (*domain.TemplateAuthConfig, error) {
	if authType == "" || encryptedCredentials == "" {
		return nil, nil
	}

	kind, err := domain.ParseTemplateAuthType(authType)
	if err != nil {
		return nil, fmt.Errorf("invalid auth type: %w", err)
	}

	payload, err := e.Decrypt(encryptedCredentials)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	var blob templateAuthBlob
	if err := json.Unmarshal([]byte(payload), &blob); err != nil {
		return nil, fmt.Errorf("failed to deserialize credentials: %w", err)
	}

	auth := &domain.TemplateAuthConfig{}
	switch kind {
	case domain.TemplateAuthTypeHTTP:
		auth.HTTPAuth = blob.HTTP
	case domain.TemplateAuthTypeSSH:
		auth.SSHAuth = blob.SSH
	}
	return auth, nil
}
