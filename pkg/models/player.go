// Package models contains the data structures of the league dataset
package models

import (
	"github.com/myusername/squash-ladder/pkg/result"
)

// DefaultRating is the rating of a player who has not been rated yet
const DefaultRating = 1200.0

// Player holds a player's career across all archived seasons
type Player struct {
	Name          string                   `json:"name"`
	TotalMatches  int                      `json:"n_total_matches"`
	TotalWins     int                      `json:"n_total_wins"`
	SeasonsPlayed int                      `json:"n_seasons"`
	Rating        float64                  `json:"last_elo"`
	Seasons       map[string]*PlayerSeason `json:"seasons"`
}

// PlayerSeason holds one player's record in one season
type PlayerSeason struct {
	Division int                      `json:"division"`
	Wins     int                      `json:"n_wins"`
	Matches  map[string]result.Result `json:"matches"`
	Rating   float64                  `json:"elo,omitempty"`
}

// NewPlayer returns a player with the default rating and no seasons
func NewPlayer(name string) *Player {
	return &Player{
		Name:    name,
		Rating:  DefaultRating,
		Seasons: make(map[string]*PlayerSeason),
	}
}

// Season returns the player's record for a season, creating it in the given
// division when the player has not entered that season yet
func (p *Player) Season(key string, division int) *PlayerSeason {
	if p.Seasons == nil {
		p.Seasons = make(map[string]*PlayerSeason)
	}
	ps, ok := p.Seasons[key]
	if !ok {
		ps = &PlayerSeason{
			Division: division,
			Matches:  make(map[string]result.Result),
		}
		p.Seasons[key] = ps
	}
	return ps
}

// Rated reports whether a rating replay has already stored a season
// snapshot for the player
func (p *Player) Rated() bool {
	if p.Rating == 0 {
		return false
	}
	for _, ps := range p.Seasons {
		if ps.Rating != 0 {
			return true
		}
	}
	return false
}

// WinRate returns the share of matches won, or 0 before any match
func (p *Player) WinRate() float64 {
	if p.TotalMatches == 0 {
		return 0
	}
	return float64(p.TotalWins) / float64(p.TotalMatches)
}

// WinRate returns the share of the season's matches won
func (ps *PlayerSeason) WinRate() float64 {
	if len(ps.Matches) == 0 {
		return 0
	}
	return float64(ps.Wins) / float64(len(ps.Matches))
}
