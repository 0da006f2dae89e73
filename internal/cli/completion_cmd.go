package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for kongman.

To load completions:

Bash:
  $ source <(kongman completion bash)
  # To load completions for each session, execute once:
  # Linux:
  $ kongman completion bash > /etc/bash_completion.d/kongman
  # macOS:
  $ kongman completion bash > $(brew --prefix)/etc/bash_completion.d/kongman

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  # To load completions for each session, execute once:
  $ kongman completion zsh > "${fpath[1]}/_kongman"
  # You will need to start a new shell for this setup to take effect.

Fish:
  $ kongman completion fish | source
  # To load completions for each session, execute once:
  $ kongman completion fish > ~/.config/fish/completions/kongman.fish

PowerShell:
  PS> kongman completion powershell | Out-String | Invoke-Expression
  # To load completions for every new session, run:
  PS> kongman completion powershell > kongman.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(os.Stdout, true)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
