package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prdraft/prdraft/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Set up API credentials interactively",
	Long: `Stores your OpenAI or Gemini API key and optional GitHub token in the
OS keychain when available, falling back to a user-only credentials file.`,
	RunE: runConfigure,
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cm := config.NewCredentialManager()
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("PRDraft configuration")
	fmt.Println()

	fmt.Print("Provider [openai/gemini] (default openai): ")
	provider, _ := reader.ReadString('\n')
	provider = strings.TrimSpace(strings.ToLower(provider))
	if provider == "" {
		provider = "openai"
	}

	var creds config.Credentials
	switch provider {
	case "openai":
		fmt.Print("OpenAI API key: ")
		key, _ := reader.ReadString('\n')
		creds.OpenAIAPIKey = strings.TrimSpace(key)
	case "gemini":
		fmt.Print("Gemini API key: ")
		key, _ := reader.ReadString('\n')
		creds.GeminiAPIKey = strings.TrimSpace(key)
	default:
		return fmt.Errorf("unknown provider %q", provider)
	}

	fmt.Print("GitHub token (optional, press Enter to skip): ")
	token, _ := reader.ReadString('\n')
	creds.GitHubToken = strings.TrimSpace(token)

	if err := cm.SaveCredentials(creds); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("✓ Credentials saved")
	fmt.Printf("  Set PRDRAFT_PROVIDER=%s (or api.provider in the config file) to select the provider.\n", provider)
	return nil
}
