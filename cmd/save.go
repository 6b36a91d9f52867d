package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/melih-ucgun/pldownloader/internal/core"
	"github.com/melih-ucgun/pldownloader/internal/dispatch"
)

var saveCmd = &cobra.Command{
	Use:   "save [file...]",
	Short: "Save local files (or stdin) into private or public storage",
	Example: `  pldownloader save report.pdf notes.txt
  pldownloader save --public --mime image/png shot.png
  cat data.bin | pldownloader save --stdin --name data.bin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		public, _ := cmd.Flags().GetBool("public")
		name, _ := cmd.Flags().GetString("name")
		mimeType, _ := cmd.Flags().GetString("mime")
		fromStdin, _ := cmd.Flags().GetBool("stdin")
		jobs, _ := cmd.Flags().GetInt("jobs")

		switch {
		case fromStdin && len(args) > 0:
			return fmt.Errorf("--stdin does not take file arguments")
		case fromStdin && name == "":
			return fmt.Errorf("--stdin requires --name")
		case !fromStdin && len(args) == 0:
			return fmt.Errorf("no files given")
		case name != "" && len(args) > 1:
			return fmt.Errorf("--name can only be used with a single file")
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		d := a.dispatcher

		if fromStdin {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			var p *dispatch.Pending[core.DownloadResponse]
			if public {
				p = d.SaveFilePublicFromBuffer(ctx, core.SaveFilePublicFromBufferRequest{Data: data, FileName: name, MimeType: optional(mimeType)})
			} else {
				p = d.SaveFilePrivateFromBuffer(ctx, core.SaveFilePrivateFromBufferRequest{Data: data, FileName: name})
			}
			return report(ctx, "stdin", p)
		}

		calls := make([]dispatch.Call, 0, len(args))
		for _, src := range args {
			calls = append(calls, func(ctx context.Context) error {
				var p *dispatch.Pending[core.DownloadResponse]
				if public {
					p = d.SaveFilePublicFromPath(ctx, core.SaveFilePublicFromPathRequest{SourcePath: src, FileName: optional(name), MimeType: optional(mimeType)})
				} else {
					p = d.SaveFilePrivateFromPath(ctx, core.SaveFilePrivateFromPathRequest{SourcePath: src, FileName: optional(name)})
				}
				if err := report(ctx, src, p); err != nil {
					pterm.Error.Printfln("%s: %s", src, Describe(err))
					return err
				}
				return nil
			})
		}
		if err := dispatch.All(ctx, jobs, calls...); err != nil {
			return fmt.Errorf("some files could not be saved")
		}
		return nil
	},
}

// report waits for p and prints where source ended up.
func report(ctx context.Context, source string, p *dispatch.Pending[core.DownloadResponse]) error {
	resp, err := p.Wait(ctx)
	if err != nil {
		return err
	}
	pterm.Success.Printfln("%s -> %s", source, resp.Location())
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return core.String(s)
}

func init() {
	saveCmd.Flags().Bool("public", false, "save into user-visible storage")
	saveCmd.Flags().String("name", "", "target file name (defaults to the source name)")
	saveCmd.Flags().String("mime", "", "MIME type hint for public files")
	saveCmd.Flags().Bool("stdin", false, "read the content from standard input")
	saveCmd.Flags().IntP("jobs", "j", 4, "files saved concurrently")
	rootCmd.AddCommand(saveCmd)
}
