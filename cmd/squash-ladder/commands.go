package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/myusername/squash-ladder/internal/config"
	"github.com/myusername/squash-ladder/internal/utils"
	"github.com/myusername/squash-ladder/pkg/aggregator"
	"github.com/myusername/squash-ladder/pkg/calendar"
	"github.com/myusername/squash-ladder/pkg/contacts"
	"github.com/myusername/squash-ladder/pkg/elo"
	"github.com/myusername/squash-ladder/pkg/names"
	"github.com/myusername/squash-ladder/pkg/parser"
	"github.com/myusername/squash-ladder/pkg/scraper"
	"github.com/myusername/squash-ladder/pkg/store"
)

// deps is everything a command may need from the application graph
type deps struct {
	fx.In

	Config     *config.Config
	Logger     zerolog.Logger
	Dictionary *names.Dictionary
	Calendar   *calendar.Calendar
	Fetcher    scraper.PageFetcher
	Extractor  *parser.Extractor
	Aggregator *aggregator.Aggregator
	Engine     *elo.Engine
	Store      *store.SQLiteStore
}

// command is a parsed subcommand and its options
type command struct {
	name string

	saveNames  bool
	csvPath    string
	mode       string
	player     string
	matches    bool
	dumpPath   string
	minMatches int
	top        int
	pdfPath    string
	division   int

	out io.Writer
}

var errNoDatabase = errors.New("no database configured, set SQLITE_PATH or -db")

func parseCommand(args []string) (*command, error) {
	if len(args) == 0 {
		return nil, errors.New("missing command")
	}
	cmd := &command{name: args[0], out: os.Stdout}

	fs := flag.NewFlagSet(cmd.name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	switch cmd.name {
	case "crawl":
		fs.BoolVar(&cmd.saveNames, "save-names", false, "Write the name dictionary back to NAMES_PATH")
		fs.StringVar(&cmd.csvPath, "csv", "", "Also export player seasons to this CSV file")
	case "elo":
		fs.StringVar(&cmd.mode, "mode", "", "Rating mode: full or incremental (overrides RATING_MODE)")
	case "player":
		fs.BoolVar(&cmd.matches, "matches", false, "List every match of the player")
		fs.StringVar(&cmd.dumpPath, "dump", "", "Write the player's record to this JSON file")
	case "emails":
	case "winrates":
		fs.IntVar(&cmd.minMatches, "min", 50, "Minimum number of matches played")
	case "top":
		fs.IntVar(&cmd.top, "n", 20, "Number of players to list")
	case "calendar":
		fs.StringVar(&cmd.pdfPath, "pdf", "", "League calendar PDF to import")
	default:
		return nil, fmt.Errorf("unknown command %q", cmd.name)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.name, err)
	}

	switch cmd.name {
	case "player":
		cmd.player = strings.Join(fs.Args(), " ")
		if cmd.player == "" {
			return nil, errors.New("player: missing player name")
		}
	case "emails":
		if fs.NArg() != 1 {
			return nil, errors.New("emails: expected one division rank")
		}
		division, err := strconv.Atoi(fs.Arg(0))
		if err != nil || division < 1 {
			return nil, fmt.Errorf("emails: invalid division %q", fs.Arg(0))
		}
		cmd.division = division
	case "elo":
		if _, err := elo.ParseMode(cmd.mode); err != nil {
			return nil, fmt.Errorf("elo: %w", err)
		}
	case "calendar":
		if cmd.pdfPath == "" {
			return nil, errors.New("calendar: -pdf is required")
		}
	case "top":
		if cmd.top < 1 {
			return nil, errors.New("top: -n must be positive")
		}
	}
	return cmd, nil
}

// run executes the command and returns the process exit code
func (c *command) run(ctx context.Context, d deps) int {
	log := d.Logger.With().Str("command", c.name).Logger()

	var err error
	switch c.name {
	case "crawl":
		err = c.crawl(ctx, d)
	case "elo":
		err = c.rate(ctx, d)
	case "player":
		err = c.showPlayer(d)
	case "winrates":
		err = c.winrates(d)
	case "top":
		err = c.showTop(ctx, d)
	case "calendar":
		err = c.importCalendar(d)
	case "emails":
		err = c.emails(ctx, d)
	}
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		return 1
	}
	return 0
}

func (c *command) crawl(ctx context.Context, d deps) error {
	ds, summary, err := d.Aggregator.Aggregate(ctx, d.Config.IndexURL)
	if err != nil {
		return err
	}

	if err := store.SaveDataset(d.Config.DataPath, ds); err != nil {
		return err
	}
	d.Logger.Info().Str("path", d.Config.DataPath).Msg("dataset saved")

	if d.Store != nil {
		if err := d.Store.Export(ctx, ds); err != nil {
			return err
		}
	}
	if c.saveNames {
		if err := d.Dictionary.Save(d.Config.NamesPath); err != nil {
			return err
		}
		d.Logger.Info().Str("path", d.Config.NamesPath).Int("names", d.Dictionary.Len()).Msg("name dictionary saved")
	}
	if c.csvPath != "" {
		if err := utils.SavePlayersToCSV(ds, c.csvPath); err != nil {
			return err
		}
		d.Logger.Info().Str("path", c.csvPath).Msg("player seasons saved")
	}

	utils.DisplaySummary(c.out, summary)
	return nil
}

func (c *command) rate(ctx context.Context, d deps) error {
	ds, err := store.LoadDataset(d.Config.DataPath)
	if err != nil {
		return err
	}

	engine := d.Engine
	if c.mode != "" {
		mode, _ := elo.ParseMode(c.mode)
		engine = elo.NewEngine(d.Engine.Base, mode, d.Logger)
	}
	report := engine.Apply(ds)

	if err := store.SaveDataset(d.Config.DataPath, ds); err != nil {
		return err
	}
	if d.Store != nil {
		if err := d.Store.Export(ctx, ds); err != nil {
			return err
		}
	}

	utils.DisplayPeak(c.out, report)
	return nil
}

func (c *command) showPlayer(d deps) error {
	ds, err := store.LoadDataset(d.Config.DataPath)
	if err != nil {
		return err
	}
	p, ok := utils.FindPlayer(ds, c.player)
	if !ok {
		return fmt.Errorf("player %s not found", c.player)
	}
	utils.DisplayPlayer(c.out, ds, p)

	if c.matches {
		utils.DisplayMatches(c.out, ds, p)
	}
	if c.dumpPath != "" {
		if err := store.SavePlayer(c.dumpPath, p); err != nil {
			return err
		}
		d.Logger.Info().Str("player", p.Name).Str("path", c.dumpPath).Msg("player record saved")
	}
	return nil
}

func (c *command) winrates(d deps) error {
	ds, err := store.LoadDataset(d.Config.DataPath)
	if err != nil {
		return err
	}
	utils.DisplayWinrates(c.out, ds, c.minMatches)
	return nil
}

func (c *command) showTop(ctx context.Context, d deps) error {
	if d.Store == nil {
		return errNoDatabase
	}
	players, err := d.Store.TopRated(ctx, c.top)
	if err != nil {
		return err
	}
	utils.DisplayTopRated(c.out, players)
	return nil
}

func (c *command) importCalendar(d deps) error {
	changed, err := d.Calendar.ImportPDF(c.pdfPath)
	if err != nil {
		return err
	}
	if err := d.Calendar.Save(d.Config.SeasonsPath); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Imported %d season dates into %s (%d seasons known)\n", changed, d.Config.SeasonsPath, d.Calendar.Len())
	return nil
}

// emails prints the member address of each player of one division of the
// running league
func (c *command) emails(ctx context.Context, d deps) error {
	content, err := scraper.FetchWithFallback(ctx, d.Fetcher, d.Config.LeagueURL)
	if err != nil {
		return fmt.Errorf("failed to fetch league page: %w", err)
	}
	page, err := d.Extractor.Extract(ctx, d.Config.LeagueURL, content)
	if err != nil {
		return fmt.Errorf("failed to read league page: %w", err)
	}
	players, ok := page.Divisions[c.division]
	if !ok {
		return fmt.Errorf("division %d not found", c.division)
	}

	content, err = scraper.FetchWithFallback(ctx, d.Fetcher, d.Config.MembersURL)
	if err != nil {
		return fmt.Errorf("failed to fetch member page: %w", err)
	}
	dir, err := contacts.ParseDirectory(content)
	if err != nil {
		return err
	}
	d.Logger.Debug().Int("members", dir.Len()).Int("division", c.division).Msg("member list loaded")

	utils.DisplayContacts(c.out, players, dir)
	return nil
}
