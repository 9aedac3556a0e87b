package commands

import (
	"context"
	"encoding/json"

	"github.com/hay-kot/storefront/internal/commands/doctor"
	"github.com/hay-kot/storefront/internal/printer"
	"github.com/urfave/cli/v3"
)

type DoctorCmd struct {
	flags   *Flags
	format  string
	fix     bool
	offline bool
}

func NewDoctorCmd(flags *Flags) *DoctorCmd {
	return &DoctorCmd{flags: flags}
}

func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your storefront setup",
		UsageText:   "storefront doctor [options]",
		Description: "Runs diagnostic checks on configuration, stored cart data, the session, and the backend.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			&cli.BoolFlag{
				Name:        "fix",
				Usage:       "repair malformed or inconsistent stored cart data",
				Destination: &cmd.fix,
			},
			&cli.BoolFlag{
				Name:        "offline",
				Usage:       "skip the backend check",
				Destination: &cmd.offline,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	svc := cmd.flags.Services

	checks := []doctor.Check{
		doctor.NewConfigCheck(cmd.flags.Config, cmd.flags.ConfigPath),
		doctor.NewStorageCheck(svc.Storage, svc.Storage.Driver, svc.Storage.Path, cmd.fix),
		doctor.NewSessionCheck(svc.Sessions),
	}
	if !cmd.offline {
		checks = append(checks, doctor.NewBackendCheck(svc.API, cmd.flags.Config.API.Timeout))
	}

	results := doctor.RunAll(ctx, checks)

	if cmd.format == "json" {
		return cmd.outputJSON(c, results)
	}

	return cmd.outputText(ctx, results)
}

func (cmd *DoctorCmd) outputJSON(c *cli.Command, results []doctor.Result) error {
	passed, warned, failed := doctor.Summary(results)

	out := struct {
		Healthy bool            `json:"healthy"`
		Summary summaryJSON     `json:"summary"`
		Checks  []doctor.Result `json:"checks"`
	}{
		Healthy: failed == 0,
		Summary: summaryJSON{Passed: passed, Warned: warned, Failed: failed, Fixable: doctor.CountFixable(results)},
		Checks:  results,
	}

	enc := json.NewEncoder(c.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

type summaryJSON struct {
	Passed  int `json:"passed"`
	Warned  int `json:"warned"`
	Failed  int `json:"failed"`
	Fixable int `json:"fixable"`
}

func (cmd *DoctorCmd) outputText(ctx context.Context, results []doctor.Result) error {
	p := printer.Ctx(ctx)

	for _, result := range results {
		p.Section(result.Name)

		for _, item := range result.Items {
			switch item.Status {
			case doctor.StatusPass:
				p.CheckItem(item.Label, item.Detail)
			case doctor.StatusWarn:
				p.WarnItem(item.Label, item.Detail)
			case doctor.StatusFail:
				p.FailItem(item.Label, item.Detail)
			}
		}

		p.Printf("")
	}

	passed, warned, failed := doctor.Summary(results)
	p.Printf("Summary: %d passed, %d warnings, %d failed", passed, warned, failed)
	p.Printf("Status:  %s", overallStatus(warned, failed))

	if n := doctor.CountFixable(results); n > 0 {
		p.Printf("%d issue(s) can be repaired with 'storefront doctor --fix'", n)
	}

	if failed > 0 {
		return cli.Exit("", 1)
	}

	return nil
}

func overallStatus(warned, failed int) string {
	switch {
	case failed > 0:
		return printer.StatusFailed("unhealthy")
	case warned > 0:
		return printer.StatusWarn("healthy with warnings")
	default:
		return printer.StatusOK()
	}
}
