package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var rootCmd = &cobra.Command{
	Use:   "ftv1",
	Short: "Inspect federated ftv1 traces",
	Long:  `ftv1 decodes the federated trace records a subgraph embeds in its responses`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		mode, err := cmd.Flags().GetString("color")
		if err != nil {
			return err
		}
		return applyColorMode(mode, isTerminal(os.Stdout))
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(decodeCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func applyColorMode(mode string, tty bool) error {
	switch mode {
	case "auto":
		color.NoColor = !tty
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		return fmt.Errorf("unsupported color mode %q (must be auto, on or off)", mode)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
