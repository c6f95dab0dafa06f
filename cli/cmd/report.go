package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/plonegovbr/transmute/cli/render"
	"github.com/plonegovbr/transmute/source"
	"github.com/plonegovbr/transmute/types"
)

// ReportCommand returns the report command. It scans a source export
// without transforming anything and summarizes its contents, useful for
// sizing a migration before running it.
func ReportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Summarize a source export by type, state and creator",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:     "src",
				Usage:    "Source export root",
				Required: true,
			},
		),
		Action: reportAction,
	}
}

// sourceReport is the payload of the report command.
type sourceReport struct {
	Root     string     `json:"root"`
	Records  int64      `json:"records"`
	Types    []countRow `json:"types"`
	States   []countRow `json:"states"`
	Creators []countRow `json:"creators"`
}

type countRow struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

func reportAction(c *cli.Context) error {
	src := c.String("src")
	files, err := source.Enumerate(src)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot enumerate source: %v", err), exitConfigError)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	report := sourceReport{Root: src}
	byType := map[string]int64{}
	byState := map[string]int64{}
	byCreator := map[string]int64{}

	err = source.Files{}.EachItem(ctx, files.Content, func(_ string, item types.Item) error {
		report.Records++
		byType[item.Type()]++
		byState[item.ReviewState()]++
		if creators, ok := item["creators"].([]any); ok {
			for _, creator := range creators {
				if name, ok := creator.(string); ok {
					byCreator[name]++
				}
			}
		}
		return nil
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot read source: %v", err), exitConfigError)
	}

	report.Types = countRows(byType)
	report.States = countRows(byState)
	report.Creators = countRows(byCreator)

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(report)
}

// countRows sorts a tally by descending count, then name.
func countRows(tally map[string]int64) []countRow {
	rows := make([]countRow, 0, len(tally))
	for name, count := range tally {
		rows = append(rows, countRow{Name: name, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}
