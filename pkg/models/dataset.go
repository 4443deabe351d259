package models

import (
	"sort"
)

// Season holds the summary of one archived competition period
type Season struct {
	Key        string   `json:"key"`
	Year       int      `json:"year"`
	Month      int      `json:"month"`
	Divisions  int      `json:"n_divisions"`
	NPlayers   int      `json:"n_players"`
	Matches    int      `json:"n_matches"`
	Completion float64  `json:"completion"`
	Players    []string `json:"players"`
}

// Before reports whether s comes strictly before other in chronological order
func (s *Season) Before(other *Season) bool {
	if s.Year != other.Year {
		return s.Year < other.Year
	}
	if s.Month != other.Month {
		return s.Month < other.Month
	}
	return s.Key < other.Key
}

// Dataset is the document persisted between crawling and rating
type Dataset struct {
	Players map[string]*Player `json:"players"`
	Seasons map[string]*Season `json:"seasons"`
}

// NewDataset returns an empty dataset
func NewDataset() *Dataset {
	return &Dataset{
		Players: make(map[string]*Player),
		Seasons: make(map[string]*Season),
	}
}

// Player returns the named player, creating it with defaults on first use
func (d *Dataset) Player(name string) *Player {
	if d.Players == nil {
		d.Players = make(map[string]*Player)
	}
	p, ok := d.Players[name]
	if !ok {
		p = NewPlayer(name)
		d.Players[name] = p
	}
	return p
}

// SortedSeasons returns the seasons ordered by (year, month, key)
func (d *Dataset) SortedSeasons() []*Season {
	seasons := make([]*Season, 0, len(d.Seasons))
	for _, s := range d.Seasons {
		seasons = append(seasons, s)
	}
	sort.SliceStable(seasons, func(i, j int) bool {
		return seasons[i].Before(seasons[j])
	})
	return seasons
}

// TotalMatches counts each fixture once, from the season summaries
func (d *Dataset) TotalMatches() int {
	total := 0
	for _, s := range d.Seasons {
		total += s.Matches
	}
	return total
}
