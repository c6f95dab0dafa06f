package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/plonegovbr/transmute/cli/render"
	"github.com/plonegovbr/transmute/types"
)

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: []cli.Flag{FormatFlag},
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			return r.Render(versionInfo{
				Version: types.Version,
				Index:   types.IndexVersion,
				Commit:  commit,
			})
		},
	}
}

// versionInfo is the payload of the version command.
type versionInfo struct {
	Version string `json:"version"`
	Index   string `json:"index_version"`
	Commit  string `json:"commit"`
}
