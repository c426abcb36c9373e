package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	histRepo  string
	histLimit int
	histJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past generations for a repository",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&histRepo, "repo", "", "repository in owner/name form (required)")
	historyCmd.Flags().IntVar(&histLimit, "limit", 10, "maximum entries to show")
	historyCmd.Flags().BoolVar(&histJSON, "json", false, "print entries as JSON")
	historyCmd.MarkFlagRequired("repo")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	eng, cleanup, err := buildEngine(ctx, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := eng.GetHistory(ctx, histRepo, histLimit)
	if err != nil {
		return err
	}

	if histJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Printf("No generations recorded for %s\n", histRepo)
		return nil
	}

	for _, e := range entries {
		fmt.Printf("%s  %s\n", e.Result.GeneratedAt.Local().Format("2006-01-02 15:04"), e.Result.Title)
		fmt.Printf("    id: %s | commits: %s | tone: %s | template: %s\n",
			e.Result.ID, strings.Join(e.CommitSHAs, ","), e.Tone, e.TemplateID)
		if e.Feedback != nil {
			fmt.Printf("    feedback: %s", e.Feedback.Status)
			if e.Feedback.Rating > 0 {
				fmt.Printf(" (%d/5)", e.Feedback.Rating)
			}
			if e.Feedback.Comment != "" {
				fmt.Printf(" %q", e.Feedback.Comment)
			}
			fmt.Println()
		}
		fmt.Println()
	}
	return nil
}
