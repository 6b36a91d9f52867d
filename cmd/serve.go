package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/melih-ucgun/pldownloader/internal/bridge"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer bridge calls with this machine's desktop backend",
	Long: `Starts a gRPC bridge server whose handlers run on the desktop backend.
A process configured with platform: mobile and bridge.address pointing here
forwards its ping and download calls to this machine.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a := &app{cfg: cfg, sys: detect(cmd.Context())}
		defer a.Close()

		backend, err := a.desktopBackend(cmd.Context())
		if err != nil {
			return err
		}

		reg := bridge.NewRegistry()
		bridge.RegisterBackend(reg, backend)
		srv := bridge.NewGRPCServer(reg, cfg.Bridge.Token, slog.Default())

		lis, err := net.Listen("tcp", listen)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", listen, err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			srv.GracefulStop()
		}()

		pterm.Info.Printfln("Bridge listening on %s (%s)", lis.Addr(), bridge.ServiceName)
		return srv.Serve(lis)
	},
}

func init() {
	serveCmd.Flags().String("listen", "127.0.0.1:7777", "address to listen on")
	rootCmd.AddCommand(serveCmd)
}
