package cmd

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/melih-ucgun/pldownloader/internal/state"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View completed operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.History.Path == "" {
			pterm.Info.Println("History is disabled (set history.path in the config).")
			return nil
		}

		h, err := state.Open(cfg.History.Path, slog.Default())
		if err != nil {
			return err
		}
		defer h.Close()

		records, err := h.List(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		if len(records) == 0 {
			pterm.Info.Println("No history found.")
			return nil
		}

		pterm.DefaultHeader.Println("Acquisition History")

		tableData := [][]string{{"ID", "Date", "Operation", "File", "Result"}}
		for _, r := range records {
			result := pterm.NewStyle(pterm.FgGreen).Sprint(r.Location)
			if r.Error != "" {
				result = pterm.NewStyle(pterm.FgRed).Sprint(r.Error)
			}
			tableData = append(tableData, []string{
				fmt.Sprintf("%d", r.ID),
				r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				r.Op,
				r.FileName,
				result,
			})
		}

		return pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of entries to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}
