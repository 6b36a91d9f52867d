package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var copyCmd = &cobra.Command{
	Use:   "copy <src> <dest>",
	Short: "Copy a file, creating the destination directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		dest, err := a.dispatcher.CopyFilePath(ctx, args[0], args[1]).Wait(ctx)
		if err != nil {
			return err
		}
		pterm.Success.Printfln("%s -> %s", args[0], dest)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(copyCmd)
}
