package cmd

import (
	"github.com/spf13/cobra"

	"github.com/melih-ucgun/pldownloader/internal/core"
	"github.com/melih-ucgun/pldownloader/internal/dispatch"
)

var downloadCmd = &cobra.Command{
	Use:   "download <url>",
	Short: "Download a URL into private or public storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		public, _ := cmd.Flags().GetBool("public")
		name, _ := cmd.Flags().GetString("name")
		mimeType, _ := cmd.Flags().GetString("mime")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		var p *dispatch.Pending[core.DownloadResponse]
		if public {
			p = a.dispatcher.DownloadPublic(ctx, core.DownloadPublicRequest{URL: args[0], FileName: optional(name), MimeType: optional(mimeType)})
		} else {
			p = a.dispatcher.DownloadPrivate(ctx, core.DownloadPrivateRequest{URL: args[0], FileName: optional(name)})
		}
		return report(ctx, args[0], p)
	},
}

func init() {
	downloadCmd.Flags().Bool("public", false, "download into user-visible storage")
	downloadCmd.Flags().String("name", "", "target file name (defaults to the URL's last segment)")
	downloadCmd.Flags().String("mime", "", "MIME type hint for public files")
	rootCmd.AddCommand(downloadCmd)
}
