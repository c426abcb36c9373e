package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prdraft/prdraft/internal/errors"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// CredentialManager handles credential retrieval with a priority chain:
// Environment Variables → Keychain → Credentials File → Interactive Prompt.
type CredentialManager struct {
	keyring    *KeyringManager
	configPath string
}

// Credentials holds all user credentials.
type Credentials struct {
	OpenAIAPIKey string `yaml:"openai_api_key"`
	GeminiAPIKey string `yaml:"gemini_api_key"`
	GitHubToken  string `yaml:"github_token"`
}

// NewCredentialManager creates a new credential manager.
func NewCredentialManager() *CredentialManager {
	homeDir, _ := os.UserHomeDir()
	configPath := filepath.Join(homeDir, ".config", "prdraft", "credentials.yaml")

	return &CredentialManager{
		keyring:    NewKeyringManager(),
		configPath: configPath,
	}
}

// GetOpenAIAPIKey retrieves the OpenAI API key using the priority chain.
func (cm *CredentialManager) GetOpenAIAPIKey() (string, error) {
	// 1. Environment variable (highest priority)
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key, nil
	}

	// 2. Keychain
	if cm.keyring.IsAvailable() {
		if key, err := cm.keyring.GetOpenAIKey(); err == nil && key != "" {
			return key, nil
		}
	}

	// 3. Credentials file
	if creds, err := cm.loadConfigFile(); err == nil && creds.OpenAIAPIKey != "" {
		return creds.OpenAIAPIKey, nil
	}

	// 4. Interactive prompt
	if isInteractive() {
		fmt.Println("\nOpenAI API Key not found.")
		fmt.Println("Create one at: https://platform.openai.com/api-keys")
		fmt.Println()
		return cm.promptForOpenAIKey()
	}

	return "", errors.ConfigErrorf(
		"OPENAI_API_KEY not found. Set it via:\n"+
			"  1. Environment variable: export OPENAI_API_KEY=sk-...\n"+
			"  2. Run: prdraft configure (to set up keychain)\n"+
			"  3. Credentials file: %s", cm.configPath)
}

// GetGeminiAPIKey retrieves the Gemini API key using the priority chain.
func (cm *CredentialManager) GetGeminiAPIKey() (string, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key, nil
	}

	if cm.keyring.IsAvailable() {
		if key, err := cm.keyring.GetGeminiKey(); err == nil && key != "" {
			return key, nil
		}
	}

	if creds, err := cm.loadConfigFile(); err == nil && creds.GeminiAPIKey != "" {
		return creds.GeminiAPIKey, nil
	}

	return "", errors.ConfigErrorf(
		"GEMINI_API_KEY not found. Set it via environment, 'prdraft configure', or %s",
		cm.configPath)
}

// GetGitHubToken retrieves the GitHub token using the priority chain.
// The token is optional for public repositories.
func (cm *CredentialManager) GetGitHubToken() (string, error) {
	for _, envVar := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if token := os.Getenv(envVar); token != "" {
			return token, nil
		}
	}

	if cm.keyring.IsAvailable() {
		if token, err := cm.keyring.GetGitHubToken(); err == nil && token != "" {
			return token, nil
		}
	}

	if creds, err := cm.loadConfigFile(); err == nil && creds.GitHubToken != "" {
		return creds.GitHubToken, nil
	}

	if isInteractive() {
		fmt.Println("\nGitHub Token not found (optional).")
		fmt.Println("Required for: private repos, higher rate limits")
		fmt.Println("Create one at: https://github.com/settings/tokens")
		fmt.Println()
		fmt.Print("Enter GitHub Token (or press Enter to skip): ")

		token, _ := cm.readSecurely()
		if token != "" {
			if cm.keyring.IsAvailable() {
				_ = cm.keyring.SetGitHubToken(token)
			}
			return token, nil
		}
		return "", nil
	}

	return "", nil
}

// SaveCredentials saves credentials to keychain (preferred) or the
// credentials file (fallback).
func (cm *CredentialManager) SaveCredentials(creds Credentials) error {
	if cm.keyring.IsAvailable() {
		if creds.OpenAIAPIKey != "" {
			if err := cm.keyring.SetOpenAIKey(creds.OpenAIAPIKey); err != nil {
				return errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityHigh,
					"failed to save OpenAI API key to keychain")
			}
		}
		if creds.GeminiAPIKey != "" {
			if err := cm.keyring.SetGeminiKey(creds.GeminiAPIKey); err != nil {
				return errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityHigh,
					"failed to save Gemini API key to keychain")
			}
		}
		if creds.GitHubToken != "" {
			if err := cm.keyring.SetGitHubToken(creds.GitHubToken); err != nil {
				return errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityHigh,
					"failed to save GitHub token to keychain")
			}
		}
		return nil
	}

	return cm.saveConfigFile(creds)
}

// loadConfigFile loads credentials from the credentials file.
func (cm *CredentialManager) loadConfigFile() (*Credentials, error) {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return nil, err
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, err
	}

	return &creds, nil
}

// saveConfigFile saves credentials to the credentials file.
func (cm *CredentialManager) saveConfigFile(creds Credentials) error {
	dir := filepath.Dir(cm.configPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}

	// User-only read/write: this file holds secrets
	if err := os.WriteFile(cm.configPath, data, 0600); err != nil {
		return err
	}

	return nil
}

// promptForOpenAIKey prompts the user for an OpenAI API key.
func (cm *CredentialManager) promptForOpenAIKey() (string, error) {
	fmt.Print("Enter OpenAI API Key: ")
	key, err := cm.readSecurely()
	if err != nil {
		return "", err
	}

	if key == "" {
		return "", errors.ConfigError("OpenAI API key is required")
	}

	if !strings.HasPrefix(key, "sk-") {
		return "", errors.InvalidRequest("OpenAI API key should start with 'sk-'")
	}

	if cm.keyring.IsAvailable() {
		if err := cm.keyring.SetOpenAIKey(key); err == nil {
			fmt.Println("✓ Saved to keychain")
		}
	} else {
		creds := Credentials{OpenAIAPIKey: key}
		if err := cm.saveConfigFile(creds); err == nil {
			fmt.Printf("✓ Saved to %s\n", cm.configPath)
		}
	}

	return key, nil
}

// readSecurely reads a password/token from stdin without echoing.
func (cm *CredentialManager) readSecurely() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		bytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	// Fallback: piped input
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// isInteractive returns true if stdin is a terminal (not piped).
func isInteractive() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

// GetConfigPath returns the path to the credentials file.
func (cm *CredentialManager) GetConfigPath() string {
	return cm.configPath
}
