package main

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/organicnz/rustsible-gui/pkg/lib"
	"github.com/organicnz/rustsible-gui/pkg/lib/procdir"
)

func newPsCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List running processes by executable name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				exe, err := os.Executable()
				if err != nil {
					return err
				}
				name = filepath.Base(exe)
			}
			seq, err := procdir.FindByName(procdir.New(), name)
			if err != nil {
				return err
			}
			records := slices.SortedFunc(seq, func(a, b lib.ProcessRecord) int { return a.PID - b.PID })
			printProcesses(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "executable name (default: this program)")
	return cmd
}

func printProcesses(w io.Writer, records []lib.ProcessRecord) {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{strconv.Itoa(rec.PID), strconv.Itoa(rec.ParentPID), rec.Name, rec.State.String()})
	}
	printTable(w, []string{"PID", "PPID", "NAME", "STATE"}, rows)
}
