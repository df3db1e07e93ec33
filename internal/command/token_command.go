package command

import (
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/auth"
	"github.com/SystemBuilders/MigrationLock/internal/config"
	"github.com/spf13/cobra"
)

// newTokenCommand returns the cobra command for "token".
func newTokenCommand() *cobra.Command {
	tc := &cobra.Command{
		Use:   "token <subcommand>",
		Short: "Token related commands",
	}
	tc.AddCommand(newTokenIssueCommand())
	return tc
}

func newTokenIssueCommand() *cobra.Command {
	var configFile string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "issue <credId>",
		Short: "Issues a bearer token for a caller, signed with the configured secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			token, err := auth.NewJWTResolver(cfg.Auth).IssueToken(args[0], ttl)
			if err != nil {
				return err
			}
			display(cmd).Done(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", defaultConfigFile, "configuration file path")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime, 0 never expires")
	return cmd
}
