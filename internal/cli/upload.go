package cli

import (
	"fmt"
	"os"

	"escape-room-service/internal/domain"
	"github.com/spf13/cobra"
)

// NewUploadCmd ingests a question file straight into the configured store.
func NewUploadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a question file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			b, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			operator := domain.Caller{Subject: "cli", Admin: true}
			report, err := newService(b, cfg).UploadQuestions(cmd.Context(), operator, f)
			if err != nil {
				return err
			}
			for _, w := range report.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped %s\n", w)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d questions (%d skipped)\n", report.Accepted, report.Skipped)
			return nil
		},
	}
}
