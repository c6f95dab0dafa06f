package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/plonegovbr/transmute/cli/render"
	"github.com/plonegovbr/transmute/config"
	"github.com/plonegovbr/transmute/registry"
	"github.com/plonegovbr/transmute/source"
	"github.com/plonegovbr/transmute/steps"
)

// CheckCommand returns the check command. It validates the settings file
// and reports the availability of every configured step without touching
// the destination.
func CheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Validate settings and report step chain availability",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:  "src",
				Usage: "Also enumerate this source export and report its file counts",
			},
		),
		Action: checkAction,
	}
}

// checkReport is the payload of the check command.
type checkReport struct {
	Settings string                `json:"settings"`
	Chain    []registry.StepStatus `json:"chain"`
	Source   *sourceCounts         `json:"source,omitempty"`
}

type sourceCounts struct {
	Root     string `json:"root"`
	Content  int    `json:"content_files"`
	Metadata int    `json:"metadata_files"`
}

func checkAction(c *cli.Context) error {
	cfg, err := config.LoadOrDefault(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid settings: %v", err), exitConfigError)
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("invalid settings: %v", err), exitConfigError)
	}

	reg := registry.New(cfg, steps.Builtin(), steps.Processors())
	report := checkReport{
		Settings: "ok",
		Chain:    reg.CheckChain(cfg.Pipeline.Steps),
	}

	failed := false
	for _, status := range report.Chain {
		if !status.Available {
			failed = true
		}
	}

	if src := c.String("src"); src != "" {
		files, err := source.Enumerate(src)
		if err != nil {
			return cli.Exit(fmt.Sprintf("cannot enumerate source: %v", err), exitConfigError)
		}
		report.Source = &sourceCounts{
			Root:     src,
			Content:  len(files.Content),
			Metadata: len(files.Metadata),
		}
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if err := r.Render(report); err != nil {
		return err
	}

	if failed {
		return cli.Exit("", exitConfigError)
	}
	return nil
}
