package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stemsi/exstem-proctor/internal/auth"
)

func newWhoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the role and landing dashboard of the current token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := auth.Decode(opts.tokenSource().Token())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Email:     %s\n", orDash(id.Email))
			fmt.Fprintf(out, "Role:      %s\n", orDash(id.Role))
			fmt.Fprintf(out, "Dashboard: %s\n", auth.DashboardPath(id.Role))
			if id.ExpiresAt != nil {
				state := "valid"
				if id.ExpiresAt.Before(time.Now()) {
					state = "expired"
				}
				fmt.Fprintf(out, "Expires:   %s (%s)\n", id.ExpiresAt.UTC().Format(time.RFC3339), state)
			}
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
