package fx

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"github.com/myusername/squash-ladder/internal/config"
	"github.com/myusername/squash-ladder/internal/logger"
	"github.com/myusername/squash-ladder/pkg/aggregator"
	"github.com/myusername/squash-ladder/pkg/calendar"
	"github.com/myusername/squash-ladder/pkg/elo"
	"github.com/myusername/squash-ladder/pkg/names"
	"github.com/myusername/squash-ladder/pkg/parser"
	"github.com/myusername/squash-ladder/pkg/scraper"
	"github.com/myusername/squash-ladder/pkg/store"
)

func ProvideDictionary(cfg *config.Config, logger zerolog.Logger) (*names.Dictionary, error) {
	dict, err := names.LoadDictionary(cfg.NamesPath)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("path", cfg.NamesPath).Int("names", dict.Len()).Msg("name dictionary loaded")
	return dict, nil
}

func ProvideCalendar(cfg *config.Config, logger zerolog.Logger) (*calendar.Calendar, error) {
	cal, err := calendar.Load(cfg.SeasonsPath)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("path", cfg.SeasonsPath).Int("seasons", cal.Len()).Msg("season calendar loaded")
	return cal, nil
}

func ProvideFetcher(cfg *config.Config, logger zerolog.Logger) scraper.PageFetcher {
	return scraper.NewFetcher(cfg.FetchTimeout, logger)
}

func ProvideAggregator(cfg *config.Config, fetcher scraper.PageFetcher, extractor *parser.Extractor, cal *calendar.Calendar, logger zerolog.Logger) *aggregator.Aggregator {
	return aggregator.New(fetcher, extractor, cal, aggregator.Options{
		Workers: cfg.FetchWorkers,
		Skip:    cfg.SkipSeasons,
		HTMLDir: cfg.HTMLDir,
	}, logger)
}

func ProvideEngine(cfg *config.Config, logger zerolog.Logger) *elo.Engine {
	return elo.NewEngine(cfg.BaseRating, cfg.RatingMode, logger)
}

// ProvideSQLiteStore opens the database mirror, or returns nil when no
// database is configured
func ProvideSQLiteStore(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (*store.SQLiteStore, error) {
	if cfg.SQLitePath == "" {
		return nil, nil
	}
	s, err := store.NewSQLiteStore(cfg.SQLitePath, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return s.Close()
		},
	})
	return s, nil
}

// applyLogLevel lowers verbosity once the configured level is known, then
// reports the configuration of the run
func applyLogLevel(cfg *config.Config, log zerolog.Logger) {
	logger.SetLevel(cfg.LogLevel)

	log.Debug().
		Str("index_url", cfg.IndexURL).
		Str("league_url", cfg.LeagueURL).
		Str("members_url", cfg.MembersURL).
		Str("data_path", cfg.DataPath).
		Str("names_path", cfg.NamesPath).
		Str("seasons_path", cfg.SeasonsPath).
		Str("sqlite_path", cfg.SQLitePath).
		Str("log_level", cfg.LogLevel).
		Dur("fetch_timeout", cfg.FetchTimeout).
		Int("fetch_workers", cfg.FetchWorkers).
		Strs("skip_seasons", cfg.SkipSeasons).
		Float64("base_rating", cfg.BaseRating).
		Str("rating_mode", string(cfg.RatingMode)).
		Msg("configuration loaded")
}

// WithRunID tags every log line of the run
func WithRunID(runID string) fx.Option {
	return fx.Decorate(func(l zerolog.Logger) zerolog.Logger {
		return l.With().Str("run_id", runID).Logger()
	})
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Invoke(applyLogLevel),
	// lookup tables
	fx.Provide(ProvideDictionary),
	fx.Provide(ProvideCalendar),
	// crawling
	fx.Provide(ProvideFetcher),
	fx.Provide(parser.NewExtractor),
	fx.Provide(ProvideAggregator),
	// rating and storage
	fx.Provide(ProvideEngine),
	fx.Provide(ProvideSQLiteStore),
)
