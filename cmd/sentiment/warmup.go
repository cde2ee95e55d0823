package main

import (
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nicekwell/easyweb3-sentiment/internal/sentiment"
)

var warmupCmd = &cobra.Command{
	Use:   "warmup [TOKEN[:expected]...]",
	Short: "Classify a watch-list once and print the outcome",
	Long: "Classify a watch-list once and print the outcome. Tokens default to warmup.tokens, " +
		"or BTC, ETH, SUI, SOL and USDT when that is empty.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp(cfg, log)
		defer a.Close()

		tokens := args
		if len(tokens) == 0 {
			tokens = cfg.Warmup.Tokens
		}
		list := a.watchList(tokens)
		report := a.warmer.Warmup(cmd.Context(), list)
		return printWarmupReport(list, report)
	},
}

func printWarmupReport(list []sentiment.WatchListEntry, report sentiment.WarmupReport) error {
	failed := make(map[string]error, len(report.Failures))
	for _, f := range report.Failures {
		failed[f.Subject] = f.Err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"#", "Token", "Expected", "Result"})
	var data [][]string
	for i, e := range list {
		result := "ok"
		if err, ok := failed[e.Subject]; ok {
			result = err.Error()
		}
		expected := string(e.ExpectedLabel)
		if expected == "" {
			expected = "-"
		}
		data = append(data, []string{strconv.Itoa(i + 1), e.Subject, expected, result})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	table.Footer([]string{"", "attempted " + strconv.Itoa(report.Attempted), "", "failed " + strconv.Itoa(len(report.Failures))})
	return table.Render()
}
