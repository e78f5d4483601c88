package cli

import (
	"context"
	"encoding/json"
	"fmt"

	flag "github.com/spf13/pflag"
)

// configCommand prints the resolved configuration and where it came from.
func configCommand(app *App) *Command {
	flags := flag.NewFlagSet("config", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "config",
		Short: "Show resolved configuration",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			printable := app.Cfg
			if printable.APIToken != "" {
				printable.APIToken = "(set)"
			}

			formatted, err := json.MarshalIndent(printable, "", "  ")
			if err != nil {
				return fmt.Errorf("format config: %w", err)
			}

			o.Println(string(formatted))
			o.Println()
			o.Println("# workspace:", app.Cfg.Workspace)
			o.Println("# store:", app.Cfg.StorePathAbs)

			sources := app.Cfg.Sources

			if sources.Global != "" {
				o.Println("# global config:", sources.Global)
			}

			if sources.Project != "" {
				o.Println("# project config:", sources.Project)
			}

			if sources.Global == "" && sources.Project == "" {
				o.Println("# (using defaults only)")
			}

			return nil
		},
	}
}
