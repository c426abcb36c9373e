package config

import (
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "PRDraft"

	// KeyringUser is the user identifier for credentials
	KeyringUser = "default"

	// Keychain item names
	KeyringOpenAIKeyItem   = "openai-api-key"
	KeyringGeminiKeyItem   = "gemini-api-key"
	KeyringGitHubTokenItem = "github-token"
)

// KeyringManager handles secure credential storage in the OS keychain.
// macOS: Keychain Access; Windows: Credential Manager; Linux: Secret Service.
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager.
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

// IsAvailable checks whether the OS keychain is usable on this system.
func (km *KeyringManager) IsAvailable() bool {
	const probe = "prdraft-keyring-probe"
	if err := keyring.Set(KeyringService, probe, "ok"); err != nil {
		return false
	}
	_ = keyring.Delete(KeyringService, probe)
	return true
}

func (km *KeyringManager) set(item, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", item)
	}
	if err := keyring.Set(KeyringService, item, value); err != nil {
		km.logger.Error("failed to save credential to keychain", "item", item, "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	return nil
}

func (km *KeyringManager) get(item string) (string, error) {
	value, err := keyring.Get(KeyringService, item)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetOpenAIKey stores the OpenAI API key in the OS keychain.
func (km *KeyringManager) SetOpenAIKey(key string) error {
	return km.set(KeyringOpenAIKeyItem, key)
}

// GetOpenAIKey retrieves the OpenAI API key from the OS keychain.
func (km *KeyringManager) GetOpenAIKey() (string, error) {
	return km.get(KeyringOpenAIKeyItem)
}

// SetGeminiKey stores the Gemini API key in the OS keychain.
func (km *KeyringManager) SetGeminiKey(key string) error {
	return km.set(KeyringGeminiKeyItem, key)
}

// GetGeminiKey retrieves the Gemini API key from the OS keychain.
func (km *KeyringManager) GetGeminiKey() (string, error) {
	return km.get(KeyringGeminiKeyItem)
}

// SetGitHubToken stores the GitHub token in the OS keychain.
func (km *KeyringManager) SetGitHubToken(token string) error {
	return km.set(KeyringGitHubTokenItem, token)
}

// GetGitHubToken retrieves the GitHub token from the OS keychain.
func (km *KeyringManager) GetGitHubToken() (string, error) {
	return km.get(KeyringGitHubTokenItem)
}
