package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewTokenCmd prints a signed bearer token, typically for the game master.
func NewTokenCmd(opts *options) *cobra.Command {
	var admin bool
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			authenticator, err := newAuthenticator(cfg)
			if err != nil {
				return err
			}
			token, caller, expiresAt, err := authenticator.Issue(args[0], admin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "subject=%s admin=%t expires=%s\n", caller.Subject, caller.Admin, expiresAt.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "grant admin rights")
	return cmd
}
