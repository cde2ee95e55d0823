package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats TOKEN [TOKEN...]",
	Short: "Print cache counters for tokens",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg, log)
		defer a.Close()

		table := tablewriter.NewWriter(os.Stdout)
		table.Header([]string{"Token", "Hits", "Misses", "Invalidations", "Last Updated"})
		var data [][]string
		for _, tok := range args {
			s, err := a.service.Stats(cmd.Context(), tok)
			if err != nil {
				return fmt.Errorf("stats %s: %w", tok, err)
			}
			if s == nil {
				data = append(data, []string{tok, "-", "-", "-", "never"})
				continue
			}
			data = append(data, []string{
				tok,
				strconv.FormatInt(s.Hits, 10),
				strconv.FormatInt(s.Misses, 10),
				strconv.FormatInt(s.Invalidations, 10),
				s.LastUpdated.Format(time.RFC3339),
			})
		}
		if err := table.Bulk(data); err != nil {
			return err
		}
		return table.Render()
	},
}
