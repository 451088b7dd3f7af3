package main

import (
	"context"
	"fmt"
	"os"

	"github.com/eduquery/eduquery/internal/domain"
	"github.com/eduquery/eduquery/internal/notify"
	"github.com/eduquery/eduquery/internal/service"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>",
	Short: "Upload a PDF to the answering service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, client, err := setup(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync()

		printer := notify.NewPrinter(cmd.OutOrStdout())
		flow := service.NewUploadFlow(client, printer, logger)

		path := args[0]
		if fileType := domain.DetectFileType(path); !cfg.Upload.AllowsType(fileType) {
			msg := fmt.Sprintf("Unsupported file type %q.", fileType)
			printer.Notify(notify.KindWarning, msg)
			return &domain.ValidationError{Field: "file", Message: msg, Err: domain.ErrUnsupportedFile}
		}

		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if info.Size() > cfg.Upload.MaxSize {
			printer.Notify(notify.KindWarning, "The selected file is too large.")
			return domain.ErrFileTooLarge
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		flow.Select(domain.NewPendingFile(path, content))

		return flow.Submit(context.Background(), nil)
	},
}
