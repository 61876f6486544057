package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/incident"
	"github.com/stemsi/exstem-proctor/internal/logger"
)

func newViolationsCmd(opts *options) *cobra.Command {
	var redisURL string
	cmd := &cobra.Command{
		Use:   "violations <session-id>",
		Short: "Show the confirmed violation count journaled for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.New(os.Stderr, opts.logLevel, "pretty")
			rdb, err := database.NewRedisClient(cmd.Context(), &config.Config{RedisURL: redisURL}, log)
			if errors.Is(err, database.ErrRedisDisabled) {
				return fmt.Errorf("set --redis-url or REDIS_URL to read the incident journal")
			}
			if err != nil {
				return err
			}
			defer rdb.Close()

			n, err := incident.NewPublisher(rdb, log).Violations(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("read violations: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session:    %s\nViolations: %d\n", args[0], n)
			return nil
		},
	}
	cmd.Flags().StringVar(&redisURL, "redis-url", os.Getenv("REDIS_URL"), "Redis holding the incident journal")
	return cmd
}
