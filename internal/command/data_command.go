package command

import (
	"io/ioutil"

	"github.com/spf13/cobra"
)

// newDataCommand returns the cobra command for "data".
func newDataCommand(gf *GlobalFlags) *cobra.Command {
	dc := &cobra.Command{
		Use:   "data <subcommand>",
		Short: "Migration data related commands",
	}

	dc.AddCommand(
		newDataGetCommand(gf),
		newDataSaveCommand(gf),
		newDataRemoveCommand(gf),
	)
	return dc
}

func newDataGetCommand(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <pstr>",
		Short: "Shows the caller's migration data for a scheme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := gf.commandCtx(cmd)
			defer cancel()

			data, err := gf.client().MigrationData(ctx, args[0])
			if err != nil {
				return err
			}
			display(cmd).Data(data)
			return nil
		},
	}
}

func newDataSaveCommand(gf *GlobalFlags) *cobra.Command {
	var fromFile string

	cmd := &cobra.Command{
		Use:   "save <pstr> [json]",
		Short: "Stores the caller's migration data for a scheme",
		Long:  "Stores the JSON document given as argument, read from --file, or read from stdin.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			switch {
			case len(args) == 2:
				data = []byte(args[1])
			case fromFile != "":
				data, err = ioutil.ReadFile(fromFile)
			default:
				data, err = ioutil.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			ctx, cancel := gf.commandCtx(cmd)
			defer cancel()

			if err := gf.client().SaveMigrationData(ctx, args[0], data); err != nil {
				return err
			}
			display(cmd).Done("Migration data saved")
			return nil
		},
	}

	cmd.Flags().StringVar(&fromFile, "file", "", "read the JSON document from a file")
	return cmd
}

func newDataRemoveCommand(gf *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <pstr>",
		Short: "Removes the caller's migration data for a scheme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := gf.commandCtx(cmd)
			defer cancel()

			if err := gf.client().RemoveMigrationData(ctx, args[0]); err != nil {
				return err
			}
			display(cmd).Done("Migration data removed")
			return nil
		},
	}
}
