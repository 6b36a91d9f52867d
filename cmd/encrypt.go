package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melih-ucgun/pldownloader/internal/config"
	"github.com/melih-ucgun/pldownloader/internal/crypto"
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt <value>",
	Short: "Encrypt a secret for use in the config file",
	Long: `Encrypts a value with the master key (` + config.MasterKeyEnv + `,
~/.pldownloader/master.key, or an interactive prompt). Paste the output into
bridge.token or storage.remote.password.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := config.MasterKey()
		if key == "" {
			return fmt.Errorf("no master key available")
		}
		sealed, err := crypto.Encrypt(args[0], key)
		if err != nil {
			return err
		}
		fmt.Println(sealed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(encryptCmd)
}
