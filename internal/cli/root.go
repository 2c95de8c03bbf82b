package cli

import (
	"fmt"
	"os"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Kade-Heyborne/port-manager/internal/config"
	"github.com/Kade-Heyborne/port-manager/internal/port"
	"github.com/Kade-Heyborne/port-manager/internal/process"
	"github.com/Kade-Heyborne/port-manager/internal/terminate"
	"github.com/Kade-Heyborne/port-manager/internal/tui"
)

var (
	// Set via ldflags at build time.
	version = "dev"

	// Global flags.
	jsonOutput bool
	quiet      bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "portman",
	Short: "Resolve and kill processes bound to TCP ports",
	Long: `portman resolves a TCP port to the process bound to it and can
terminate that process, gracefully first and forcefully if needed,
waiting until the port is actually released.
Launch without subcommands for interactive mode.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if shell, _ := cmd.Flags().GetString("generate-completion"); shell != "" {
			switch shell {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", shell)
			}
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		scanner := port.NewLsofScanner(&port.RealCmdRunner{})
		inspector := process.NewInspector()
		terminator := terminate.NewTerminator(process.NewRealManager(), scanner)

		p := tea.NewProgram(
			tui.New(scanner, inspector, terminator, cfg.Timeouts(), version),
			tea.WithAltScreen(),
		)
		_, err = p.Run()
		return err
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("portman %s\n", version))
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Flags().String("generate-completion", "", "Generate shell completion (bash, zsh, fish)")
	rootCmd.Flags().MarkHidden("generate-completion")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default ~/.config/portman/config.yaml)")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(killCmd)
	rootCmd.AddCommand(listCmd)
}

// newResolver wires the default OS-backed resolver stack.
func newResolver() *process.Resolver {
	scanner := port.NewLsofScanner(&port.RealCmdRunner{})
	return process.NewResolver(scanner, process.NewInspector())
}

// parsePortArg converts a positional argument into a validated port number.
func parsePortArg(arg string) (int, error) {
	portNum, err := strconv.Atoi(arg)
	if err != nil {
		return 0, &exitError{code: ExitInvalidPort, msg: fmt.Sprintf("invalid port number %q", arg)}
	}
	if err := port.Validate(portNum); err != nil {
		return 0, err
	}
	return portNum, nil
}
