// Package command holds the migrationlock command line: the server and a
// client for every lock and migration data operation.
package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/SystemBuilders/MigrationLock/internal/lockclient"
	"github.com/spf13/cobra"
)

const (
	cliName        = "migrationlock"
	cliDescription = "Migration lock service and command line client."

	defaultURL            = "http://127.0.0.1:8080"
	defaultCommandTimeOut = 5 * time.Second

	tokenEnv = "MIGRATIONLOCK_TOKEN"
)

// Exit codes.
const (
	ExitSuccess = iota
	ExitError
	ExitBadArgs
)

// GlobalFlags are flags that defined globally and are inherited to all sub-commands.
type GlobalFlags struct {
	URL            string
	Token          string
	CommandTimeOut time.Duration
}

// NewRootCommand returns the migrationlock root command.
func NewRootCommand() *cobra.Command {
	gf := &GlobalFlags{}
	rootCmd := &cobra.Command{
		Use:           cliName,
		Short:         cliDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&gf.URL, "url", defaultURL, "lock service base url")
	rootCmd.PersistentFlags().StringVar(&gf.Token, "token", os.Getenv(tokenEnv), "bearer token, defaults to $"+tokenEnv)
	rootCmd.PersistentFlags().DurationVar(&gf.CommandTimeOut, "command-timeout", defaultCommandTimeOut, "timeout for running command")

	rootCmd.AddCommand(
		newServeCommand(),
		newLockCommand(gf),
		newDataCommand(gf),
		newTokenCommand(),
	)
	return rootCmd
}

// Start runs the command line with the process arguments.
func Start() error {
	return NewRootCommand().Execute()
}

// MustStart is like Start but exiting in case an error occurs.
func MustStart() {
	if err := Start(); err != nil {
		ExitWithError(ExitError, err)
	}
}

// ExitWithError prints err and exits the process with code.
func ExitWithError(code int, err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(code)
}

func (gf *GlobalFlags) client() *lockclient.SimpleClient {
	return lockclient.NewSimpleClient(&lockclient.SimpleConfig{
		URL:         gf.URL,
		BearerToken: gf.Token,
	})
}

func (gf *GlobalFlags) commandCtx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), gf.CommandTimeOut)
}
