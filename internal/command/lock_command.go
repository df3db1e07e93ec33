package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newLockCommand returns the cobra command for "lock".
func newLockCommand(gf *GlobalFlags) *cobra.Command {
	lc := &cobra.Command{
		Use:   "lock <subcommand>",
		Short: "Lock related commands",
	}

	lc.AddCommand(
		newLockGetCommand(gf),
		newLockGetMineCommand(gf),
		newLockGetByUserCommand(gf),
		newLockAcquireCommand(gf),
		newLockReleaseCommand(gf),
		newLockReleaseMineCommand(gf),
		newLockReleaseByUserCommand(gf),
	)
	return lc
}

func newLockGetCommand(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <pstr>",
		Short: "Shows the lock held on a scheme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := gf.commandCtx(cmd)
			defer cancel()

			lock, err := gf.client().LockOnScheme(ctx, args[0])
			if err != nil {
				return err
			}
			display(cmd).Lock(lock)
			return nil
		},
	}
}

func newLockGetMineCommand(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get-mine <pstr> <psaId>",
		Short: "Shows the lock on a scheme if the caller holds it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := gf.commandCtx(cmd)
			defer cancel()

			lock, err := gf.client().LockForCaller(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			display(cmd).Lock(lock)
			return nil
		},
	}
}

func newLockGetByUserCommand(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get-by-user",
		Short: "Shows the lock the caller holds on any scheme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := gf.commandCtx(cmd)
			defer cancel()

			lock, err := gf.client().LockByCaller(ctx)
			if err != nil {
				return err
			}
			display(cmd).Lock(lock)
			return nil
		},
	}
}

func newLockAcquireCommand(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "acquire <pstr> <psaId>",
		Short: "Locks a scheme for the caller",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := gf.commandCtx(cmd)
			defer cancel()

			if err := gf.client().Acquire(ctx, args[0], args[1]); err != nil {
				return err
			}
			display(cmd).Done(fmt.Sprintf("Lock on %s acquired", args[0]))
			return nil
		},
	}
}

func newLockReleaseCommand(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "release <pstr>",
		Short: "Releases the lock on a scheme whoever holds it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := gf.commandCtx(cmd)
			defer cancel()

			if err := gf.client().ReleaseOnScheme(ctx, args[0]); err != nil {
				return err
			}
			display(cmd).Done(fmt.Sprintf("Lock on %s released", args[0]))
			return nil
		},
	}
}

func newLockReleaseMineCommand(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "release-mine <pstr> <psaId>",
		Short: "Releases the lock on a scheme if the caller holds it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := gf.commandCtx(cmd)
			defer cancel()

			if err := gf.client().ReleaseExactForCaller(ctx, args[0], args[1]); err != nil {
				return err
			}
			display(cmd).Done(fmt.Sprintf("Lock on %s released", args[0]))
			return nil
		},
	}
}

func newLockReleaseByUserCommand(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "release-by-user",
		Short: "Releases the lock the caller holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := gf.commandCtx(cmd)
			defer cancel()

			if err := gf.client().ReleaseByCaller(ctx); err != nil {
				return err
			}
			display(cmd).Done("Lock released")
			return nil
		},
	}
}

func display(cmd *cobra.Command) printer {
	return &simplePrinter{w: cmd.OutOrStdout()}
}
