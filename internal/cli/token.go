package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stemsi/exstem-proctor/internal/auth"
	"golang.org/x/term"
)

func newTokenCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored bearer token",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Store a bearer token (read from the terminal without echo, or from stdin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := readToken(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if _, err := auth.Decode(token); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(opts.tokenFile), 0o700); err != nil {
				return fmt.Errorf("create token dir: %w", err)
			}
			if err := auth.WriteTokenFile(opts.tokenFile, token); err != nil {
				return fmt.Errorf("write token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token stored in %s\n", opts.tokenFile)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.Remove(opts.tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("remove token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Token cleared")
			return nil
		},
	})
	return cmd
}

// readToken prompts without echo when in is a terminal, otherwise reads the
// first line.
func readToken(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Token: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", auth.ErrNoToken
	}
	return token, nil
}

// tokenSource prefers an explicit token over the stored one.
func (o *options) tokenSource() auth.TokenSource {
	return auth.Chain{auth.Static(o.token), auth.File(o.tokenFile)}
}
