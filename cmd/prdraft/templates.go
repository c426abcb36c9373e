package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prdraft/prdraft/internal/styles"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List available message templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, err := styles.NewResolver(styles.DefaultTemplatesPath())
		if err != nil {
			return err
		}

		fmt.Println("Available templates:")
		for _, id := range resolver.TemplateIDs() {
			fmt.Printf("  %s\n", id)
		}
		fmt.Printf("\nAdd your own in %s\n", styles.DefaultTemplatesPath())
		return nil
	},
}
