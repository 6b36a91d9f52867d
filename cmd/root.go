package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/melih-ucgun/pldownloader/internal/config"
)

// logLevel is raised or lowered once the config is loaded.
var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:   "pldownloader",
	Short: "Save and download files into app-private or public storage",
	Long: `pldownloader stores files through one platform backend: the local file
system on desktop, or native code reached over a bridge on mobile.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultPath, "config file path")
}
