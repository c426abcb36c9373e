package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/prdraft/prdraft/internal/models"
	"github.com/prdraft/prdraft/internal/source"
)

var (
	genRepo     string
	genCommits  []string
	genTone     string
	genTemplate string
	genUser     string
	genPath     string
	genLast     int
	genJSON     bool
	genWeb      bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a PR title and body from a set of commits",
	Example: `  prdraft generate --repo acme/widgets --commits a1b2c3,d4e5f6
  prdraft generate --repo acme/widgets --last 5 --tone detailed --template release
  prdraft generate --repo acme/widgets --commits a1b2c3 --web`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genRepo, "repo", "", "repository in owner/name form (required)")
	generateCmd.Flags().StringSliceVar(&genCommits, "commits", nil, "commit SHAs to describe")
	generateCmd.Flags().IntVar(&genLast, "last", 0, "describe the N most recent commits instead of naming SHAs")
	generateCmd.Flags().StringVar(&genTone, "tone", "", "message tone: concise, detailed, or technical")
	generateCmd.Flags().StringVar(&genTemplate, "template", "", "template id (see 'prdraft templates')")
	generateCmd.Flags().StringVar(&genUser, "user", "", "user id recorded with the request")
	generateCmd.Flags().StringVar(&genPath, "path", "", "read commits from a local clone at this path instead of the GitHub API")
	generateCmd.Flags().BoolVar(&genJSON, "json", false, "print the result as JSON")
	generateCmd.Flags().BoolVar(&genWeb, "web", false, "open a prefilled GitHub compare page")
	generateCmd.MarkFlagRequired("repo")
	generateCmd.MarkFlagsOneRequired("commits", "last")
	generateCmd.MarkFlagsMutuallyExclusive("commits", "last")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var commitSource source.CommitSource
	var local *source.LocalGitSource
	if genPath != "" {
		local = source.NewLocalGitSource(genPath, logger)
		commitSource = local
	}

	eng, cleanup, err := buildEngine(ctx, commitSource)
	if err != nil {
		return err
	}
	defer cleanup()

	if genLast > 0 {
		if local != nil {
			genCommits, err = local.ListRecent(ctx, genLast)
		} else {
			genCommits, err = source.NewGitHubSource(cfg.GitHub, nil, logger).ListRecent(ctx, genRepo, genLast)
		}
		if err != nil {
			return err
		}
	}

	result, err := eng.GeneratePRMessage(ctx, &models.GenerationRequest{
		RepoID:     genRepo,
		UserID:     genUser,
		CommitSHAs: genCommits,
		Tone:       models.Tone(genTone),
		TemplateID: genTemplate,
	})
	if err != nil {
		return err
	}

	if genJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Println(result.Title)
	fmt.Println()
	fmt.Println(result.Body)
	fmt.Println()
	fmt.Printf("── id: %s | source: %s | provenance: %s | model: %s | %d tokens | %dms\n",
		result.ID, result.Source, result.Provenance, result.Model,
		result.TokensUsed, result.ProcessingMS)

	if genWeb {
		if err := browser.OpenURL(compareURL(genRepo, result)); err != nil {
			logger.WithError(err).Warn("Failed to open browser")
		}
	}
	return nil
}

// compareURL builds a GitHub compare page URL prefilled with the
// generated title and body.
func compareURL(repoID string, result *models.GenerationResult) string {
	q := url.Values{}
	q.Set("expand", "1")
	q.Set("title", result.Title)
	q.Set("body", result.Body)
	return fmt.Sprintf("https://github.com/%s/compare?%s",
		strings.TrimSuffix(repoID, "/"), q.Encode())
}
