// Package utils provides report printing and export helpers for squash-ladder
package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/myusername/squash-ladder/pkg/aggregator"
	"github.com/myusername/squash-ladder/pkg/contacts"
	"github.com/myusername/squash-ladder/pkg/elo"
	"github.com/myusername/squash-ladder/pkg/models"
	"github.com/myusername/squash-ladder/pkg/names"
	"github.com/myusername/squash-ladder/pkg/store"
)

// DisplaySummary prints the outcome of a crawl
func DisplaySummary(w io.Writer, summary *aggregator.Summary) {
	fmt.Fprintf(w, "\n=========== ARCHIVE SUMMARY ===========\n")
	fmt.Fprintf(w, "%-16s %6d\n", "Seasons", summary.TotalSeasons)
	fmt.Fprintf(w, "%-16s %6d\n", "Players", summary.TotalPlayers)
	fmt.Fprintf(w, "%-16s %6d\n", "Matches", summary.TotalMatches)

	if len(summary.Skipped) > 0 {
		fmt.Fprintf(w, "%-16s %s\n", "Skipped", strings.Join(summary.Skipped, ", "))
	}
	if len(summary.Failed) > 0 {
		fmt.Fprintf(w, "\nFailed seasons (%d):\n", len(summary.Failed))
		for _, f := range summary.Failed {
			fmt.Fprintf(w, "  %-12s %s\n", f.Key, f.Reason)
		}
	}
	fmt.Fprintln(w, strings.Repeat("=", 39))
}

// DisplayPeak prints the highest rating reached during a replay
func DisplayPeak(w io.Writer, report elo.Report) {
	fmt.Fprintf(w, "Rated %d fixtures over %d seasons\n", report.Fixtures, report.Seasons)
	if report.Peak.Player == "" {
		return
	}
	fmt.Fprintf(w, "Highest rating: %s, %.1f in season %s\n",
		report.Peak.Player, report.Peak.Rating, report.Peak.Season)
}

// FindPlayer finds a player by any spelling of their name
func FindPlayer(ds *models.Dataset, raw string) (*models.Player, bool) {
	if p, ok := ds.Players[raw]; ok {
		return p, true
	}
	key := names.Key(names.Clean(raw))
	if key == "" {
		return nil, false
	}
	for name, p := range ds.Players {
		if names.Key(names.Clean(name)) == key {
			return p, true
		}
	}
	return nil, false
}

// DisplayPlayer prints a player's career followed by one line per season
func DisplayPlayer(w io.Writer, ds *models.Dataset, p *models.Player) {
	fmt.Fprintf(w, "%s (%d total games, %d wins, %.2f%% winrate, Elo %6.1f)\n",
		p.Name, p.TotalMatches, p.TotalWins, 100*p.WinRate(), p.Rating)

	header := fmt.Sprintf(" %-19s | %-3s | %-3s | %-12s | %-6s |", "Season", "Div", "GP", " Wins (%)", "Elo")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, season := range ds.SortedSeasons() {
		ps, ok := p.Seasons[season.Key]
		if !ok {
			continue
		}
		fmt.Fprintf(w, " %-12s %2d/%4d | %3d | %3d | %3d (%5.1f%%) | %6.1f |\n",
			season.Key, season.Month, season.Year,
			ps.Division, len(ps.Matches), ps.Wins, 100*ps.WinRate(), ps.Rating)
	}
	fmt.Fprintln(w, strings.Repeat("-", len(header)))
}

// DisplayMatches lists every match of the player, season by season
func DisplayMatches(w io.Writer, ds *models.Dataset, p *models.Player) {
	type match struct {
		season, opponent string
		result           string
	}
	var matches []match
	for _, season := range ds.SortedSeasons() {
		ps, ok := p.Seasons[season.Key]
		if !ok {
			continue
		}
		opponents := make([]string, 0, len(ps.Matches))
		for opponent := range ps.Matches {
			opponents = append(opponents, opponent)
		}
		sort.Strings(opponents)
		for _, opponent := range opponents {
			matches = append(matches, match{season.Key, opponent, string(ps.Matches[opponent])})
		}
	}

	fmt.Fprintf(w, "%d matches\n", len(matches))
	for _, m := range matches {
		fmt.Fprintf(w, "%-12s: %-30s: %s\n", m.season, m.opponent, m.result)
	}
}

// DisplayContacts prints the e-mail address found for each player
func DisplayContacts(w io.Writer, players []string, dir *contacts.Directory) {
	for _, name := range players {
		var email string
		switch found := dir.Find(name); len(found) {
		case 0:
			email = "not found"
		case 1:
			email = found[0]
		default:
			email = "multiple entries: " + strings.Join(found, " ")
		}
		fmt.Fprintf(w, "%-40s : %s\n", name, email)
	}
}

// DisplayWinrates prints players with at least minMatches matches, worst
// win rate first
func DisplayWinrates(w io.Writer, ds *models.Dataset, minMatches int) {
	var players []*models.Player
	for _, p := range ds.Players {
		if p.TotalMatches >= minMatches && p.TotalMatches > 0 {
			players = append(players, p)
		}
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].WinRate() != players[j].WinRate() {
			return players[i].WinRate() < players[j].WinRate()
		}
		return players[i].Name < players[j].Name
	})

	for _, p := range players {
		fmt.Fprintf(w, "%-30s -- Total games: %3d (%3d wins, %.2f%% percentage)\n",
			p.Name, p.TotalMatches, p.TotalWins, 100*p.WinRate())
	}
}

// DisplayTopRated prints the rating table read from the database
func DisplayTopRated(w io.Writer, players []store.RatedPlayer) {
	fmt.Fprintf(w, "%-4s | %-30s | %-6s | %-5s | %-4s | %-7s\n", "#", "Player", "Elo", "Games", "Wins", "Seasons")
	fmt.Fprintf(w, "%-4s | %-30s | %-6s | %-5s | %-4s | %-7s\n",
		strings.Repeat("-", 4), strings.Repeat("-", 30), strings.Repeat("-", 6),
		strings.Repeat("-", 5), strings.Repeat("-", 4), strings.Repeat("-", 7))
	for i, p := range players {
		fmt.Fprintf(w, "%4d | %-30s | %6.1f | %5d | %4d | %7d\n",
			i+1, p.Name, p.Rating, p.Matches, p.Wins, p.Seasons)
	}
}

// SavePlayersToCSV saves one line per player and season to a CSV file
func SavePlayersToCSV(ds *models.Dataset, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"Season", "Year", "Month", "Player", "Division", "Games", "Wins", "Elo"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, season := range ds.SortedSeasons() {
		for _, name := range season.Players {
			p, ok := ds.Players[name]
			if !ok {
				continue
			}
			ps, ok := p.Seasons[season.Key]
			if !ok {
				continue
			}
			record := []string{
				season.Key,
				strconv.Itoa(season.Year),
				strconv.Itoa(season.Month),
				name,
				strconv.Itoa(ps.Division),
				strconv.Itoa(len(ps.Matches)),
				strconv.Itoa(ps.Wins),
				strconv.FormatFloat(ps.Rating, 'f', 1, 64),
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("failed to write player data: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
