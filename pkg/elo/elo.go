// Package elo replays every archived fixture in chronological order to rate players
package elo

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/myusername/squash-ladder/pkg/models"
	"github.com/myusername/squash-ladder/pkg/result"
)

// K is the maximum rating change of one match, the same for both players
const K = 40.0

// BaseRating is the rating every player starts from
const BaseRating = models.DefaultRating

// Mode selects how existing ratings are treated before a replay
type Mode string

const (
	// ModeFull starts every player from the base rating
	ModeFull Mode = "full"
	// ModeIncremental keeps stored ratings and only rates new players from the base
	ModeIncremental Mode = "incremental"
)

// ParseMode parses a mode name, defaulting to ModeFull when empty
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFull:
		return ModeFull, nil
	case ModeIncremental:
		return ModeIncremental, nil
	}
	return "", fmt.Errorf("unknown rating mode %q (want %q or %q)", s, ModeFull, ModeIncremental)
}

// ExpectedScore is the score a player rated a is expected to take from a player rated b
func ExpectedScore(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, -(a-b)/400))
}

// UpdateRating returns both ratings after a match whose result r is seen
// from the first player's side. A result without a score leaves both
// ratings unchanged.
func UpdateRating(a, b float64, r result.Result) (float64, float64) {
	score, ok := r.Score()
	if !ok {
		return a, b
	}
	expected := ExpectedScore(a, b)
	delta := K * (score - expected)
	return a + delta, b - delta
}

// Peak is the highest rating reached during a replay
type Peak struct {
	Player string
	Season string
	Rating float64
}

// Report summarizes a replay
type Report struct {
	Peak     Peak
	Fixtures int
	Seasons  int
}

// Engine replays a dataset
type Engine struct {
	Base   float64
	Mode   Mode
	logger zerolog.Logger
}

// NewEngine creates an engine. A zero base uses BaseRating.
func NewEngine(base float64, mode Mode, logger zerolog.Logger) *Engine {
	if base == 0 {
		base = BaseRating
	}
	if mode == "" {
		mode = ModeFull
	}
	return &Engine{Base: base, Mode: mode, logger: logger}
}

type pair [2]string

func unordered(a, b string) pair {
	if a > b {
		a, b = b, a
	}
	return pair{a, b}
}

// Apply rates every fixture of the dataset in chronological order, updating
// each player's current rating and their per-season snapshot in place
func (e *Engine) Apply(ds *models.Dataset) Report {
	e.reset(ds)

	var report Report
	found := false
	observe := func(player, season string, rating float64) {
		if !found || rating > report.Peak.Rating {
			report.Peak = Peak{Player: player, Season: season, Rating: rating}
			found = true
		}
	}

	for _, season := range ds.SortedSeasons() {
		counted := make(map[pair]bool)
		fixtures := 0

		for _, name := range season.Players {
			p := ds.Players[name]
			if p == nil {
				continue
			}
			ps := p.Seasons[season.Key]
			if ps == nil {
				continue
			}

			// Opponents follow the roster so the replay never depends on map order
			for _, opponentName := range season.Players {
				r, ok := ps.Matches[opponentName]
				if !ok {
					continue
				}
				key := unordered(name, opponentName)
				if counted[key] {
					continue
				}
				counted[key] = true

				opponent := ds.Players[opponentName]
				if opponent == nil {
					continue
				}
				if _, ok := r.Score(); !ok {
					continue
				}

				p.Rating, opponent.Rating = UpdateRating(p.Rating, opponent.Rating, r)
				ps.Rating = p.Rating
				if opponentSeason := opponent.Seasons[season.Key]; opponentSeason != nil {
					opponentSeason.Rating = opponent.Rating
				}
				fixtures++

				observe(name, season.Key, p.Rating)
				observe(opponentName, season.Key, opponent.Rating)
			}
		}

		report.Fixtures += fixtures
		report.Seasons++
		e.logger.Debug().
			Str("season", season.Key).
			Int("fixtures", fixtures).
			Msg("season rated")
	}

	e.logger.Info().
		Int("seasons", report.Seasons).
		Int("fixtures", report.Fixtures).
		Str("peak_player", report.Peak.Player).
		Str("peak_season", report.Peak.Season).
		Float64("peak_rating", report.Peak.Rating).
		Msg("rating replay complete")
	return report
}

// reset prepares the starting ratings according to the engine mode
func (e *Engine) reset(ds *models.Dataset) {
	for _, p := range ds.Players {
		if e.Mode == ModeFull {
			p.Rating = e.Base
			for _, ps := range p.Seasons {
				ps.Rating = 0
			}
			continue
		}
		if !p.Rated() {
			p.Rating = e.Base
		}
	}
}
