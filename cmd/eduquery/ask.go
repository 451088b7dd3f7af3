package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/eduquery/eduquery/internal/notify"
	"github.com/eduquery/eduquery/internal/service"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the uploaded documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, client, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		flow := service.NewQueryFlow(client, notify.NewPrinter(cmd.ErrOrStderr()), logger)
		flow.SetQuestion(strings.Join(args, " "))

		result, err := flow.Submit(context.Background())
		if err != nil {
			return err
		}
		if result.HasAnswer() {
			fmt.Fprintln(cmd.OutOrStdout(), result.Answer)
		}
		return nil
	},
}
