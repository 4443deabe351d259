// Package main is the entry point for the squash-ladder application
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/myusername/squash-ladder/internal/config"
	fxmodules "github.com/myusername/squash-ladder/internal/fx"
)

// Version is set during build using ldflags
var (
	version = "dev"
)

// globalFlags override the configuration for one run
type globalFlags struct {
	index   string
	data    string
	db      string
	htmlDir string
	verbose bool
}

func main() {
	versionFlag := flag.Bool("version", false, "Print version information and exit")
	var g globalFlags
	flag.StringVar(&g.index, "index", "", "Archive index URL (overrides INDEX_URL)")
	flag.StringVar(&g.data, "data", "", "Dataset JSON file (overrides DATA_PATH)")
	flag.StringVar(&g.db, "db", "", "SQLite mirror database (overrides SQLITE_PATH)")
	flag.StringVar(&g.htmlDir, "html", "", "Directory receiving fetched season pages (overrides HTML_DIR)")
	flag.BoolVar(&g.verbose, "v", false, "Enable debug logging")
	flag.Usage = usage
	flag.Parse()

	if *versionFlag {
		fmt.Printf("squash-ladder version %s\n", version)
		return
	}

	cmd, err := parseCommand(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n", err)
		flag.Usage()
		os.Exit(2)
	}

	app := fx.New(
		fx.NopLogger,
		fxmodules.Module,
		fxmodules.WithRunID(uuid.New().String()),
		fx.Decorate(g.apply),
		fx.Supply(cmd),
		fx.Invoke(runCommand),
	)
	if err := app.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "squash-ladder: %v\n", err)
		os.Exit(1)
	}
	app.Run()
}

// apply writes the flags given on the command line over the loaded configuration
func (g globalFlags) apply(cfg *config.Config) *config.Config {
	if g.index != "" {
		cfg.IndexURL = g.index
	}
	if g.data != "" {
		cfg.DataPath = g.data
	}
	if g.db != "" {
		cfg.SQLitePath = g.db
	}
	if g.htmlDir != "" {
		cfg.HTMLDir = g.htmlDir
	}
	if g.verbose {
		cfg.LogLevel = "debug"
	}
	return cfg
}

// runCommand runs the command once the application has started, then
// stops the application with the command's exit code
func runCommand(lc fx.Lifecycle, shutdowner fx.Shutdowner, d deps, cmd *command) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				code := cmd.run(ctx, d)
				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					d.Logger.Error().Err(err).Msg("shutdown failed")
					os.Exit(code)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: squash-ladder [flags] <command> [command flags]\n\n")
	fmt.Fprintf(out, "Commands:\n")
	fmt.Fprintf(out, "  crawl [-save-names] [-csv file]   extract every archived season into the dataset\n")
	fmt.Fprintf(out, "  elo [-mode full|incremental]      replay all fixtures and store the ratings\n")
	fmt.Fprintf(out, "  player [-matches] [-dump file] <name>\n")
	fmt.Fprintf(out, "                                    print a player's season history\n")
	fmt.Fprintf(out, "  winrates [-min N]                 list players with at least N matches by win rate\n")
	fmt.Fprintf(out, "  top [-n N]                        list the best rated players from the database\n")
	fmt.Fprintf(out, "  calendar -pdf file                import season dates from a league calendar PDF\n")
	fmt.Fprintf(out, "  emails <division>                 match a running division's players to member addresses\n\n")
	fmt.Fprintf(out, "Flags:\n")
	flag.PrintDefaults()
}
