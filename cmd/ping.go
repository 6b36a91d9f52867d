package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/melih-ucgun/pldownloader/internal/core"
)

var pingCmd = &cobra.Command{
	Use:   "ping [value]",
	Short: "Check that the bound backend answers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		var req core.PingRequest
		if len(args) == 1 {
			req.Value = core.String(args[0])
		}

		ctx := cmd.Context()
		resp, err := a.dispatcher.Ping(ctx, req).Wait(ctx)
		if err != nil {
			return err
		}

		if resp.Value == nil {
			pterm.Success.Printfln("%s backend is alive", a.dispatcher.Backend())
		} else {
			pterm.Success.Printfln("%s backend echoed %q", a.dispatcher.Backend(), *resp.Value)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
