package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/myusername/squash-ladder/internal/logger"
	"github.com/myusername/squash-ladder/pkg/elo"
)

// DefaultIndexURL is the archive index of the club's past leagues
const DefaultIndexURL = "http://club-squash.web.cern.ch/club-squash/archives.htm"

// Pages of the running league and of the member list
const (
	DefaultLeagueURL  = "http://club-squash.web.cern.ch/club-squash/leagues.htm"
	DefaultMembersURL = "http://club-squash.web.cern.ch/club-squash/club.html"
)

type Config struct {
	IndexURL     string
	LeagueURL    string
	MembersURL   string
	DataPath     string
	NamesPath    string
	SeasonsPath  string
	SQLitePath   string
	HTMLDir      string
	LogLevel     string
	FetchTimeout time.Duration
	FetchWorkers int
	SkipSeasons  []string
	BaseRating   float64
	RatingMode   elo.Mode
}

func Load(log zerolog.Logger) (*Config, error) {
	envErr := godotenv.Load()
	log = log.Level(logger.ParseLevel(getEnv("LOG_LEVEL", "info")))
	if envErr != nil {
		log.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	timeout, err := time.ParseDuration(getEnv("FETCH_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_TIMEOUT: %w", err)
	}
	workers, err := strconv.Atoi(getEnv("FETCH_WORKERS", "4"))
	if err != nil || workers < 1 {
		return nil, fmt.Errorf("invalid FETCH_WORKERS %q", os.Getenv("FETCH_WORKERS"))
	}
	base, err := strconv.ParseFloat(getEnv("BASE_RATING", strconv.FormatFloat(elo.BaseRating, 'f', -1, 64)), 64)
	if err != nil || base <= 0 {
		return nil, fmt.Errorf("invalid BASE_RATING %q", os.Getenv("BASE_RATING"))
	}
	mode, err := elo.ParseMode(getEnv("RATING_MODE", string(elo.ModeFull)))
	if err != nil {
		return nil, fmt.Errorf("invalid RATING_MODE: %w", err)
	}

	cfg := &Config{
		IndexURL:     getEnv("INDEX_URL", DefaultIndexURL),
		LeagueURL:    getEnv("LEAGUE_URL", DefaultLeagueURL),
		MembersURL:   getEnv("MEMBERS_URL", DefaultMembersURL),
		DataPath:     getEnv("DATA_PATH", "squash_data.json"),
		NamesPath:    getEnv("NAMES_PATH", "names.csv"),
		SeasonsPath:  getEnv("SEASONS_PATH", "seasons.txt"),
		SQLitePath:   getEnv("SQLITE_PATH", ""),
		HTMLDir:      getEnv("HTML_DIR", ""),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		FetchTimeout: timeout,
		FetchWorkers: workers,
		SkipSeasons:  splitList(getEnv("SKIP_SEASONS", "")),
		BaseRating:   base,
		RatingMode:   mode,
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitList splits a comma or space separated list
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
}
