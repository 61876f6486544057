// Package cli implements proctorctl, the operator companion of the proctor agent.
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// options are the flags shared by every command.
type options struct {
	apiURL    string
	token     string
	tokenFile string
	logLevel  string
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	envAPI := os.Getenv("API_URL")
	if envAPI == "" {
		envAPI = "http://localhost:8080"
	}
	envTokenFile := os.Getenv("TOKEN_FILE")
	if envTokenFile == "" {
		envTokenFile = defaultTokenFile()
	}
	envLevel := os.Getenv("LOG_LEVEL")
	if envLevel == "" {
		envLevel = "warn"
	}

	cmd := &cobra.Command{
		Use:           "proctorctl",
		Short:         "Operator tools for the ExStem proctor agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", envAPI, "quiz API root")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("TOKEN"), "bearer token (overrides the token file)")
	cmd.PersistentFlags().StringVar(&opts.tokenFile, "token-file", envTokenFile, "file holding the bearer token")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", envLevel, "log level written to stderr")

	cmd.AddCommand(newTokenCmd(opts))
	cmd.AddCommand(newWhoamiCmd(opts))
	cmd.AddCommand(newInspectCmd(opts))
	cmd.AddCommand(newViolationsCmd(opts))
	return cmd
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".proctor-token"
	}
	return filepath.Join(dir, "exstem-proctor", "token")
}
