package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kade-Heyborne/port-manager/internal/config"
	"github.com/Kade-Heyborne/port-manager/internal/port"
	"github.com/Kade-Heyborne/port-manager/internal/process"
	"github.com/Kade-Heyborne/port-manager/internal/terminate"
)

var (
	forceKill    bool
	gracefulWait time.Duration
	forcefulWait time.Duration
	portWait     time.Duration
	pollInterval time.Duration
)

var killCmd = &cobra.Command{
	Use:   "kill <port>",
	Short: "Kill the process listening on a port",
	Long: `Terminate the process bound to the given TCP port. Sends SIGTERM
first and escalates to SIGKILL if the port is not released within the
graceful wait. Success means the port was observed free.`,
	Args: cobra.ExactArgs(1),
	RunE: runKill,
}

func init() {
	killCmd.Flags().BoolVarP(&forceKill, "force", "f", false, "Skip SIGTERM and send SIGKILL immediately")
	killCmd.Flags().DurationVar(&gracefulWait, "graceful-wait", 0, "How long to wait after SIGTERM (default from config)")
	killCmd.Flags().DurationVar(&forcefulWait, "forceful-wait", 0, "How long to wait after SIGKILL (default from config)")
	killCmd.Flags().DurationVar(&portWait, "port-wait", 0, "How long to wait for the kernel to release the port once the process exited (default from config)")
	killCmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "Interval between port checks (default from config)")
}

// killTimeouts merges the config file defaults with any flag overrides.
func killTimeouts(cmd *cobra.Command, cfg *config.Config) terminate.Config {
	tc := cfg.Timeouts()
	if cmd.Flags().Changed("graceful-wait") {
		tc.GracefulWait = gracefulWait
	}
	if cmd.Flags().Changed("forceful-wait") {
		tc.ForcefulWait = forcefulWait
	}
	if cmd.Flags().Changed("port-wait") {
		tc.PortReleaseWait = portWait
	}
	if cmd.Flags().Changed("poll-interval") {
		tc.PollInterval = pollInterval
	}
	return tc
}

func runKill(cmd *cobra.Command, args []string) error {
	portNum, err := parsePortArg(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	tc := killTimeouts(cmd, cfg)

	// The operation runs to a terminal outcome unless the user interrupts.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	scanner := port.NewLsofScanner(&port.RealCmdRunner{})
	resolver := process.NewResolver(scanner, process.NewInspector())
	terminator := terminate.NewTerminator(process.NewRealManager(), scanner)

	handles, err := resolver.Resolve(ctx, portNum)
	if err != nil {
		if jsonOutput && errors.Is(err, port.ErrNoListener) {
			printResultJSON(jsonResult{Command: "kill", Port: portNum, Status: "not_found"})
		}
		return err
	}

	obs := terminate.Observer(terminate.NopObserver{})
	if !jsonOutput && !quiet {
		obs = terminate.ObserverFunc(func(stage terminate.Stage, elapsed time.Duration) {
			fmt.Print(".")
		})
	}

	var results []killResult
	var firstFailure error
	for _, h := range handles {
		if !jsonOutput && !quiet {
			sig := "SIGTERM"
			if forceKill {
				sig = "SIGKILL"
			}
			fmt.Printf("Sending %s to %s (PID %d) on port %d ", sig, h.Name, h.PID, portNum)
		}

		outcome, err := terminator.Terminate(ctx, h, portNum, forceKill, tc, obs)
		if err != nil {
			return fmt.Errorf("failed to terminate PID %d: %w", h.PID, err)
		}

		results = append(results, killResult{handle: h, outcome: outcome})
		if !jsonOutput {
			printKillHuman(h, portNum, outcome)
		}

		if firstFailure == nil {
			firstFailure = outcomeError(outcome, portNum)
		}
		if outcome == terminate.OutcomePermissionDenied {
			break
		}
	}

	if jsonOutput {
		if err := printKillJSON(portNum, results); err != nil {
			return err
		}
	}
	return firstFailure
}

type killResult struct {
	handle  process.Handle
	outcome terminate.Outcome
}

func printKillHuman(h process.Handle, portNum int, outcome terminate.Outcome) {
	if !quiet {
		fmt.Println()
	}
	switch outcome {
	case terminate.OutcomeAlreadyGone:
		fmt.Println(successStyle.Render(fmt.Sprintf("Process %s (PID %d) was already gone.", h.Name, h.PID)))
	case terminate.OutcomeTerminatedGracefully:
		fmt.Println(successStyle.Render(fmt.Sprintf("Process %s (PID %d) terminated gracefully; port %d is free.", h.Name, h.PID, portNum)))
	case terminate.OutcomeTerminatedForcefully:
		fmt.Println(successStyle.Render(fmt.Sprintf("Process %s (PID %d) killed; port %d is free.", h.Name, h.PID, portNum)))
	case terminate.OutcomeTimedOutGraceful:
		fmt.Println(errorStyle.Render(fmt.Sprintf("Port %d was not released within the graceful window.", portNum)))
	case terminate.OutcomeTimedOutForceful:
		fmt.Println(errorStyle.Render(fmt.Sprintf("Port %d is still bound after SIGKILL.", portNum)))
		fmt.Println(warnStyle.Render("The process may be stuck in an unkillable kernel state."))
	case terminate.OutcomePermissionDenied:
		fmt.Println(errorStyle.Render(fmt.Sprintf("Permission denied signaling %s (PID %d).", h.Name, h.PID)))
		fmt.Println(warnStyle.Render("Re-run with elevated privileges (sudo)."))
	}
}

func printKillJSON(portNum int, results []killResult) error {
	type resultEntry struct {
		PID     int    `json:"pid"`
		Name    string `json:"name"`
		Outcome string `json:"outcome"`
		Success bool   `json:"success"`
	}
	out := struct {
		Command string        `json:"command"`
		Port    int           `json:"port"`
		Status  string        `json:"status"`
		Results []resultEntry `json:"results"`
	}{
		Command: "kill",
		Port:    portNum,
		Status:  "terminated",
	}
	for _, r := range results {
		out.Results = append(out.Results, resultEntry{
			PID:     r.handle.PID,
			Name:    r.handle.Name,
			Outcome: string(r.outcome),
			Success: r.outcome.Success(),
		})
		if !r.outcome.Success() {
			out.Status = "failed"
		}
	}
	return printResultJSON(out)
}
