package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for aget.

Bash:
  # Add to ~/.bashrc:
  source <(aget completion bash)

  # Or install to system:
  aget completion bash > /etc/bash_completion.d/aget

Zsh:
  # Add to ~/.zshrc:
  source <(aget completion zsh)

  # Or install to fpath:
  aget completion zsh > "${fpath[1]}/_aget"

Fish:
  aget completion fish > ~/.config/fish/completions/aget.fish

PowerShell:
  aget completion powershell >> $PROFILE
`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return cmd.Help()
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
