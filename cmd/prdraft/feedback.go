package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prdraft/prdraft/internal/models"
)

var (
	fbStatus  string
	fbRating  int
	fbComment string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <generation-id>",
	Short: "Attach feedback to a past generation (once)",
	Example: `  prdraft feedback 2f9c... --status accepted --rating 5
  prdraft feedback 2f9c... --status edited --comment "trimmed the body"`,
	Args: cobra.ExactArgs(1),
	RunE: runFeedback,
}

func init() {
	feedbackCmd.Flags().StringVar(&fbStatus, "status", "", "accepted, edited, or rejected (required)")
	feedbackCmd.Flags().IntVar(&fbRating, "rating", 0, "rating from 1 to 5")
	feedbackCmd.Flags().StringVar(&fbComment, "comment", "", "free-form comment")
	feedbackCmd.MarkFlagRequired("status")
}

func runFeedback(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	eng, cleanup, err := buildEngine(ctx, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	err = eng.AttachFeedback(ctx, args[0], &models.Feedback{
		Status:  models.FeedbackStatus(fbStatus),
		Rating:  fbRating,
		Comment: fbComment,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Feedback recorded for %s\n", args[0])
	return nil
}
