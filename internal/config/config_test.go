package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/myusername/squash-ladder/pkg/elo"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"INDEX_URL", "LEAGUE_URL", "MEMBERS_URL", "DATA_PATH", "FETCH_TIMEOUT", "FETCH_WORKERS", "SKIP_SEASONS", "BASE_RATING", "RATING_MODE", "SQLITE_PATH"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LeagueURL != DefaultLeagueURL || cfg.MembersURL != DefaultMembersURL {
		t.Errorf("league pages = %q, %q", cfg.LeagueURL, cfg.MembersURL)
	}
	if cfg.IndexURL != DefaultIndexURL || cfg.DataPath != "squash_data.json" || cfg.SQLitePath != "" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.FetchTimeout != 30*time.Second || cfg.FetchWorkers != 4 {
		t.Errorf("fetch defaults = %v, %d", cfg.FetchTimeout, cfg.FetchWorkers)
	}
	if cfg.BaseRating != elo.BaseRating || cfg.RatingMode != elo.ModeFull {
		t.Errorf("rating defaults = %v, %q", cfg.BaseRating, cfg.RatingMode)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INDEX_URL", "http://localhost/archives.htm")
	t.Setenv("FETCH_TIMEOUT", "2s")
	t.Setenv("FETCH_WORKERS", "8")
	t.Setenv("SKIP_SEASONS", "summer15, 0907 ,1012")
	t.Setenv("BASE_RATING", "1000")
	t.Setenv("RATING_MODE", "incremental")

	cfg, err := Load(zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IndexURL != "http://localhost/archives.htm" || cfg.FetchTimeout != 2*time.Second || cfg.FetchWorkers != 8 {
		t.Errorf("config = %+v", cfg)
	}
	if diff := cmp.Diff([]string{"summer15", "0907", "1012"}, cfg.SkipSeasons); diff != "" {
		t.Errorf("skip list mismatch (-want +got):\n%s", diff)
	}
	if cfg.BaseRating != 1000 || cfg.RatingMode != elo.ModeIncremental {
		t.Errorf("rating config = %v, %q", cfg.BaseRating, cfg.RatingMode)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	for key, value := range map[string]string{
		"FETCH_TIMEOUT": "soon",
		"FETCH_WORKERS": "0",
		"BASE_RATING":   "-5",
		"RATING_MODE":   "sometimes",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(zerolog.Nop()); err == nil {
				t.Errorf("%s=%q should be rejected", key, value)
			}
		})
	}
}

func TestLoadHonoursLogLevel(t *testing.T) {
	t.Chdir(t.TempDir())
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	t.Setenv("LOG_LEVEL", "info")
	if _, err := Load(log); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("debug output at info level: %s", buf.String())
	}

	t.Setenv("LOG_LEVEL", "debug")
	if _, err := Load(log); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(".env file not found")) {
		t.Errorf("expected the .env message at debug level, got %q", buf.String())
	}
}
