package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for tgcloud.

To load completions:

Bash:
  # Linux:
  $ tgcloud completion bash > /etc/bash_completion.d/tgcloud
  # macOS:
  $ tgcloud completion bash > $(brew --prefix)/etc/bash_completion.d/tgcloud

Zsh:
  $ tgcloud completion zsh > "${fpath[1]}/_tgcloud"

Fish:
  $ tgcloud completion fish > ~/.config/fish/completions/tgcloud.fish

PowerShell:
  PS> tgcloud completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
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
