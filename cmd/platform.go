package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var platformCmd = &cobra.Command{
	Use:   "platform",
	Short: "Show the detected platform and storage roots",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		sys := detect(cmd.Context())

		out, err := yaml.Marshal(sys)
		if err != nil {
			return err
		}
		pterm.DefaultSection.Println("Detected")
		fmt.Print(string(out))

		family := cfg.Family(sys.Family)
		pterm.DefaultSection.Println("Binding")
		pterm.Info.Printfln("backend: %s (platform: %s)", family, cfg.Platform)
		if dataRoot, publicRoot, err := cfg.Roots(sys); err == nil {
			pterm.Info.Printfln("data root: %s", dataRoot)
			pterm.Info.Printfln("public root: %s", publicRoot)
		} else {
			pterm.Warning.Println(err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(platformCmd)
}
