package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/stemsi/exstem-proctor/internal/client"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/session"
)

func newInspectCmd(opts *options) *cobra.Command {
	var policyFile string
	cmd := &cobra.Command{
		Use:   "inspect <code>",
		Short: "Show a quiz and the time budget a session would get",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := config.DefaultPolicy()
			if policyFile != "" {
				var err error
				if policy, err = config.LoadPolicyFile(policyFile, policy); err != nil {
					return err
				}
			}

			log := logger.New(os.Stderr, opts.logLevel, "pretty")
			api := client.New(opts.apiURL, 15*time.Second, opts.tokenSource(), log)

			quiz, err := api.GetQuizByCode(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", session.NoticeFor(session.LoadError(err)).Message, err)
			}

			seconds := session.InitialSeconds(quiz, policy)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Quiz:       %s (id %s)\n", quiz.Title, quiz.ID)
			fmt.Fprintf(out, "Active:     %t\n", quiz.Active)
			fmt.Fprintf(out, "Questions:  %d\n", quiz.QuestionsCount)
			fmt.Fprintf(out, "Time:       %s\n", session.FormatTime(seconds))
			fmt.Fprintf(out, "Violations: %d allowed, %ds grace, fullscreen exit critical: %t\n",
				policy.MaxViolations, policy.GracePeriodSeconds, policy.FullscreenCritical)
			return nil
		},
	}
	cmd.Flags().StringVar(&policyFile, "policy", os.Getenv("POLICY_FILE"), "YAML proctoring policy to apply")
	return cmd
}
