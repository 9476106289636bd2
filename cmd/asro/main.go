// Command asro inspects and maintains asro container files.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hupe1980/asro"
	"github.com/hupe1980/asro/container"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "asro: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "asro",
		Usage:   "inspect and maintain asro container files",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "Set log level (debug, info, warn, error)", EnvVars: []string{"ASRO_LOG_LEVEL"}},
			&cli.StringFlag{Name: "log-format", Value: "text", Usage: "Log output format (text, json)", EnvVars: []string{"ASRO_LOG_FORMAT"}},
			&cli.BoolFlag{Name: "recover", Usage: "Open files left mid-transaction by salvaging their last commit", EnvVars: []string{"ASRO_RECOVER"}},
		},
		Commands: []*cli.Command{
			lsCommand(),
			mapCommand(),
			catCommand(),
			rmCommand(),
			checkCommand(),
			pushCommand(),
		},
	}
}

func newLogger(c *cli.Context) (*asro.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", c.String("log-level"))
	}
	switch strings.ToLower(c.String("log-format")) {
	case "text":
		return asro.NewTextLogger(level), nil
	case "json":
		return asro.NewJSONLogger(level), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q", c.String("log-format"))
	}
}

// openReadOnly maps path read-only for inspection.
func openReadOnly(c *cli.Context, path string) (*container.File, error) {
	logger, err := newLogger(c)
	if err != nil {
		return nil, err
	}
	opts := []container.Option{container.WithLogger(logger.Logger)}
	if c.Bool("recover") {
		opts = append(opts, container.WithRecovery())
	}
	return container.OpenMapped(path, opts...)
}

func registryOptions(c *cli.Context) ([]asro.Option, error) {
	logger, err := newLogger(c)
	if err != nil {
		return nil, err
	}
	opts := []asro.Option{asro.WithLogger(logger), asro.WithSync(true)}
	if c.Bool("recover") {
		opts = append(opts, asro.WithRecovery())
	}
	return opts, nil
}

func keyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "sub", Usage: "Sub name under the element"},
		&cli.IntFlag{Name: "cycle", Usage: "Element cycle (0 selects the lowest stored cycle)"},
	}
}

// resolveKey builds the key named by the NAME argument and key flags.
func resolveKey(c *cli.Context, f *container.File) (container.Key, error) {
	name := c.Args().Get(1)
	if name == "" {
		return container.Key{}, fmt.Errorf("missing NAME argument")
	}
	cycle := int32(c.Int("cycle"))
	if cycle == 0 {
		if cycle = f.NextCycle(name, 0); cycle == 0 {
			return container.Key{}, fmt.Errorf("%s: %w", name, container.ErrNotFound)
		}
	}
	return container.Key{Name: name, Sub: c.String("sub"), Cycle: cycle}, nil
}
