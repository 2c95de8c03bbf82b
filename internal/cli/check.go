package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Kade-Heyborne/port-manager/internal/port"
	"github.com/Kade-Heyborne/port-manager/internal/process"
)

var checkCmd = &cobra.Command{
	Use:   "check <port>",
	Short: "Check whether a port is in use and by what",
	Long: `Resolve the given TCP port to the process(es) listening on it.
A free port is a success, not an error.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

// jsonProcess is the process object in machine-readable output.
type jsonProcess struct {
	PID     int    `json:"pid"`
	Name    string `json:"name"`
	User    string `json:"user,omitempty"`
	Command string `json:"command,omitempty"`
}

// jsonResult is the machine-readable result envelope.
type jsonResult struct {
	Command   string        `json:"command"`
	Port      int           `json:"port"`
	Status    string        `json:"status"`
	Process   *jsonProcess  `json:"process"`
	Processes []jsonProcess `json:"processes,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	portNum, err := parsePortArg(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	handles, err := newResolver().Resolve(ctx, portNum)
	if errors.Is(err, port.ErrNoListener) {
		if jsonOutput {
			return printResultJSON(jsonResult{Command: "check", Port: portNum, Status: "free"})
		}
		fmt.Printf("Port %d is free.\n", portNum)
		return nil
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		return printResultJSON(checkResult(portNum, handles))
	}

	fmt.Printf("Port %d is in use:\n\n", portNum)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tPROCESS\tUSER\tCOMMAND")
	for _, h := range handles {
		cmdline := h.Command
		if len(cmdline) > 60 {
			cmdline = cmdline[:57] + "..."
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", h.PID, h.Name, h.User, cmdline)
	}
	return w.Flush()
}

func checkResult(portNum int, handles []process.Handle) jsonResult {
	res := jsonResult{Command: "check", Port: portNum, Status: "in_use"}
	for _, h := range handles {
		res.Processes = append(res.Processes, jsonProcess{
			PID:     h.PID,
			Name:    h.Name,
			User:    h.User,
			Command: h.Command,
		})
	}
	if len(res.Processes) > 0 {
		res.Process = &res.Processes[0]
	}
	return res
}

func printResultJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
