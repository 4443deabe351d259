package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/myusername/squash-ladder/pkg/models"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// RatedPlayer is one row of the rating table
type RatedPlayer struct {
	Name    string
	Rating  float64
	Matches int
	Wins    int
	Seasons int
}

// SQLiteStore mirrors the dataset into a queryable SQLite database
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens the database at path and migrates it to the latest schema
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	logger.Info().Str("path", path).Msg("opening database")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY inside Export
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	if err := runMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func runMigrations(db *sql.DB, logger zerolog.Logger) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{logger: logger})

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	return nil
}

// gooseLogger routes migration messages to zerolog
type gooseLogger struct {
	logger zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug().Msgf(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatal().Msgf(format, v...)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Export replaces the database content with the dataset in one transaction
func (s *SQLiteStore) Export(ctx context.Context, ds *models.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"matches", "player_seasons", "seasons", "players"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	seasonKeys := make([]string, 0, len(ds.Seasons))
	for key := range ds.Seasons {
		seasonKeys = append(seasonKeys, key)
	}
	sort.Strings(seasonKeys)
	for _, key := range seasonKeys {
		season := ds.Seasons[key]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO seasons (key, year, month, n_divisions, n_players, n_matches, completion)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			key, season.Year, season.Month, season.Divisions, season.NPlayers, season.Matches, season.Completion,
		); err != nil {
			return fmt.Errorf("failed to insert season %s: %w", key, err)
		}
	}

	names := make([]string, 0, len(ds.Players))
	for name := range ds.Players {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := 0
	for _, name := range names {
		p := ds.Players[name]
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO players (name, n_total_matches, n_total_wins, n_seasons, last_elo)
			 VALUES (?, ?, ?, ?, ?)`,
			name, p.TotalMatches, p.TotalWins, p.SeasonsPlayed, p.Rating,
		); err != nil {
			return fmt.Errorf("failed to insert player %s: %w", name, err)
		}

		for _, key := range sortedKeys(p.Seasons) {
			ps := p.Seasons[key]
			var rating sql.NullFloat64
			if ps.Rating != 0 {
				rating = sql.NullFloat64{Float64: ps.Rating, Valid: true}
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO player_seasons (player, season, division, n_wins, elo) VALUES (?, ?, ?, ?, ?)`,
				name, key, ps.Division, ps.Wins, rating,
			); err != nil {
				return fmt.Errorf("failed to insert season %s of %s: %w", key, name, err)
			}

			for _, opponent := range sortedKeys(ps.Matches) {
				id, err := gonanoid.New()
				if err != nil {
					return fmt.Errorf("failed to generate nanoid: %w", err)
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO matches (id, season, player, opponent, result) VALUES (?, ?, ?, ?, ?)`,
					id, key, name, opponent, string(ps.Matches[opponent]),
				); err != nil {
					return fmt.Errorf("failed to insert match %s vs %s: %w", name, opponent, err)
				}
				rows++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}

	s.logger.Info().
		Int("players", len(names)).
		Int("seasons", len(seasonKeys)).
		Int("match_rows", rows).
		Msg("dataset exported to database")
	return nil
}

// TopRated returns the n best rated players, ties broken by name
func (s *SQLiteStore) TopRated(ctx context.Context, n int) ([]RatedPlayer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, last_elo, n_total_matches, n_total_wins, n_seasons
		 FROM players
		 WHERE n_total_matches > 0
		 ORDER BY last_elo DESC, name
		 LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	var players []RatedPlayer
	for rows.Next() {
		var p RatedPlayer
		if err := rows.Scan(&p.Name, &p.Rating, &p.Matches, &p.Wins, &p.Seasons); err != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// CountMatches returns the number of stored match rows of a season, each
// fixture being stored once from each side
func (s *SQLiteStore) CountMatches(ctx context.Context, season string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches WHERE season = ?`, season).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return n, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
