package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Kade-Heyborne/port-manager/internal/port"
)

var (
	filterPort int
	filterProc string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all TCP listeners",
	Long:  "Display a table of all ports currently bound in the LISTEN state.",
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVar(&filterPort, "port", 0, "Filter by port number")
	listCmd.Flags().StringVar(&filterProc, "process", "", "Filter by process name")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	scanner := port.NewLsofScanner(&port.RealCmdRunner{})

	entries, err := scanner.ListListeners(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan ports: %w", err)
	}

	entries = filterEntries(entries)

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Port < entries[j].Port
	})

	if jsonOutput {
		return printListJSON(entries)
	}
	return printListTable(entries)
}

func filterEntries(entries []port.Entry) []port.Entry {
	var filtered []port.Entry
	for _, e := range entries {
		if filterPort > 0 && e.Port != filterPort {
			continue
		}
		if filterProc != "" && !strings.Contains(strings.ToLower(e.Process), strings.ToLower(filterProc)) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func printListTable(entries []port.Entry) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PORT\tPID\tPROCESS\tUSER")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", e.Port, e.PID, e.Process, e.User)
	}
	return w.Flush()
}

func printListJSON(entries []port.Entry) error {
	type jsonEntry struct {
		Port    int    `json:"port"`
		PID     int    `json:"pid"`
		Process string `json:"process"`
		User    string `json:"user"`
		State   string `json:"state"`
	}

	out := make([]jsonEntry, len(entries))
	for i, e := range entries {
		out[i] = jsonEntry{
			Port:    e.Port,
			PID:     e.PID,
			Process: e.Process,
			User:    e.User,
			State:   e.State,
		}
	}
	return printResultJSON(out)
}
