package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/plonegovbr/transmute/cli/render"
	"github.com/plonegovbr/transmute/config"
	"github.com/plonegovbr/transmute/registry"
	"github.com/plonegovbr/transmute/steps"
)

// SettingsCommand returns the settings command, showing the effective
// settings after defaults are applied.
func SettingsCommand() *cli.Command {
	return &cli.Command{
		Name:   "settings",
		Usage:  "Show effective settings and the registered step names",
		Flags:  ReadOnlyFlags(),
		Action: settingsAction,
	}
}

// settingsView is the payload of the settings command.
type settingsView struct {
	Steps          []string `json:"steps"`
	DoNotCountDrop []string `json:"do_not_count_drop"`
	Registered     []string `json:"registered"`
	Types          []string `json:"type_overrides"`
	Backend        string   `json:"backend"`
	Debug          bool     `json:"debug"`
}

func settingsAction(c *cli.Context) error {
	cfg, err := config.LoadOrDefault(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid settings: %v", err), exitConfigError)
	}

	reg := registry.New(cfg, steps.Builtin(), steps.Processors())
	view := settingsView{
		Steps:          cfg.Pipeline.Steps,
		DoNotCountDrop: cfg.Pipeline.DoNotCountDrop,
		Registered:     reg.StepNames(),
		Types:          cfg.TypeNames(),
		Backend:        cfg.Storage.Backend,
		Debug:          cfg.Config.Debug,
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(view)
}
