package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"kongman/internal/logging"
	"kongman/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive terminal UI",
	Long:  `Launch the full-screen interactive terminal UI for managing gateways and browsing their entities.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Log lines would tear the alternate screen.
		appInstance.Log.SetLevel(logging.LevelError)

		deps := tui.Deps{
			Storage:  appInstance.Storage,
			Gateways: appInstance.Gateways,
			Tester:   appInstance.Tester,
			Entities: appInstance.Entities,
		}

		p := tui.NewProgram(deps)
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
