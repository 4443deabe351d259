package aggregator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/myusername/squash-ladder/pkg/calendar"
	"github.com/myusername/squash-ladder/pkg/models"
	"github.com/myusername/squash-ladder/pkg/names"
	"github.com/myusername/squash-ladder/pkg/parser"
	"github.com/myusername/squash-ladder/pkg/result"
	"github.com/myusername/squash-ladder/pkg/scraper"
)

const indexURL = "http://club.example.org/squash/archives.htm"

const indexPage = `<html><body><ul>
<li><a href="archives/1605.htm">May 2016</a></li>
<li><a href="archives/summer16.htm">Summer 2016</a></li>
<li><a href="archives/1609.htm">September 2016</a></li>
<li><a href="archives/1701.htm">January 2017</a></li>
<li><a href="archives/1703.htm">March 2017</a></li>
<li><a href="archives/1612.htm">December 2016</a></li>
<li><a href="archives/1605.htm#top">May 2016 again</a></li>
<li><a href="leagues.htm">Current leagues</a></li>
</ul></body></html>`

const season1605 = `<table>
<tr><td>Division 1</td></tr>
<tr><td>A</td><td>Jo SMITH</td><td>X</td><td>3-1</td><td>2-3</td></tr>
<tr><td>B</td><td>Anna MULLER</td><td>1-3</td><td>X</td><td></td></tr>
<tr><td>C</td><td>Peter PAN</td><td>3-2</td><td></td><td>X</td></tr>
</table>`

const season1609 = `<table>
<tr><td>Division 1</td></tr>
<tr><td>A</td><td>Jo  Smith</td><td>X</td><td>3-0</td></tr>
<tr><td>B</td><td>Kim LEE</td><td>0-3</td><td>X</td></tr>
</table>`

// Header no longer matches "Division N"
const season1701 = `<table>
<tr><td>Division One</td></tr>
<tr><td>A</td><td>Jo SMITH</td><td>X</td><td>3-0</td></tr>
<tr><td>B</td><td>Kim LEE</td><td>0-3</td><td>X</td></tr>
</table>`

// Roster published but no results yet
const season1612 = `<table>
<tr><td>Division 2</td></tr>
<tr><td>A</td><td>Bob DYLAN</td><td>X</td><td></td></tr>
<tr><td>B</td><td>Kim LEE</td><td></td><td>X</td></tr>
</table>`

type fakeFetcher map[string]string

func (f fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	if content, ok := f[url]; ok {
		return content, nil
	}
	return "", &scraper.TransportError{URL: url, StatusCode: http.StatusNotFound}
}

func archive() fakeFetcher {
	return fakeFetcher{
		indexURL: indexPage,
		"http://club.example.org/squash/archives/1605.htm":     season1605,
		"http://club.example.org/squash/archives/summer16.htm": "<p>not a league</p>",
		"http://club.example.org/squash/archives/1609.html":    season1609,
		"http://club.example.org/squash/archives/1701.htm":     season1701,
		"http://club.example.org/squash/archives/1612.htm":     season1612,
	}
}

func newTestAggregator(f scraper.PageFetcher, cal *calendar.Calendar, opts Options) *Aggregator {
	logger := zerolog.Nop()
	extractor := parser.NewExtractor(f, names.NewDictionary(), logger)
	return New(f, extractor, cal, opts, logger)
}

func TestAggregate(t *testing.T) {
	agg := newTestAggregator(archive(), calendar.New(), Options{Workers: 2, Skip: []string{"summer16"}})

	ds, summary, err := agg.Aggregate(context.Background(), indexURL)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if summary.TotalSeasons != 2 || summary.TotalMatches != 3 || summary.TotalPlayers != 5 {
		t.Errorf("summary = %+v", summary)
	}
	if diff := cmp.Diff([]string{"summer16"}, summary.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}

	var failed []string
	for _, f := range summary.Failed {
		failed = append(failed, f.Key)
	}
	if diff := cmp.Diff([]string{"1701", "1703"}, failed); diff != "" {
		t.Errorf("failed seasons mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(summary.Failed[0].Reason, "Division One") {
		t.Errorf("failure reason %q should quote the bad header", summary.Failed[0].Reason)
	}

	// Seasons without a single result are not retained
	if _, ok := ds.Seasons["1612"]; ok {
		t.Error("season 1612 has no matches and should not be retained")
	}
	if _, ok := ds.Seasons["1701"]; ok {
		t.Error("failed season 1701 should not be in the dataset")
	}

	wantSeason := &models.Season{
		Key: "1605", Year: 2016, Month: 5,
		Divisions: 1, NPlayers: 3, Matches: 2,
		Completion: 2.0 / 3.0,
		Players:    []string{"Jo Smith", "Anna Muller", "Peter Pan"},
	}
	if diff := cmp.Diff(wantSeason, ds.Seasons["1605"]); diff != "" {
		t.Errorf("season 1605 mismatch (-want +got):\n%s", diff)
	}

	jo := ds.Players["Jo Smith"]
	if jo == nil {
		t.Fatal("Jo Smith missing from dataset")
	}
	if jo.SeasonsPlayed != 2 || jo.TotalMatches != 3 || jo.TotalWins != 2 {
		t.Errorf("Jo Smith totals = %d seasons, %d matches, %d wins", jo.SeasonsPlayed, jo.TotalMatches, jo.TotalWins)
	}
	wantMatches := map[string]result.Result{"Anna Muller": "3-1", "Peter Pan": "2-3"}
	if diff := cmp.Diff(wantMatches, jo.Seasons["1605"].Matches); diff != "" {
		t.Errorf("Jo Smith 1605 matches mismatch (-want +got):\n%s", diff)
	}

	peter := ds.Players["Peter Pan"].Seasons["1605"]
	if peter.Wins != 1 || peter.Matches["Jo Smith"] != "3-2" {
		t.Errorf("Peter Pan 1605 = %+v", peter)
	}

	// Players of a season without results still count it as played
	if kim := ds.Players["Kim Lee"]; kim.SeasonsPlayed != 2 || kim.Seasons["1612"].Division != 2 {
		t.Errorf("Kim Lee = %+v", kim)
	}
}

func TestAggregateTotalsMatchSeasons(t *testing.T) {
	ds, _, err := newTestAggregator(archive(), calendar.New(), Options{}).Aggregate(context.Background(), indexURL)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	for name, p := range ds.Players {
		matches, wins := 0, 0
		for _, ps := range p.Seasons {
			matches += len(ps.Matches)
			wins += ps.Wins
		}
		if matches != p.TotalMatches || wins != p.TotalWins {
			t.Errorf("%s: totals %d/%d, seasons sum %d/%d", name, p.TotalMatches, p.TotalWins, matches, wins)
		}
		if len(p.Seasons) != p.SeasonsPlayed {
			t.Errorf("%s: n_seasons %d, %d season records", name, p.SeasonsPlayed, len(p.Seasons))
		}
	}
}

func TestAggregateMissingCalendarEntry(t *testing.T) {
	f := fakeFetcher{
		indexURL: `<a href="archives/autumn-cup.htm">Autumn cup</a>`,
		"http://club.example.org/squash/archives/autumn-cup.htm": season1609,
	}

	_, _, err := newTestAggregator(f, calendar.New(), Options{}).Aggregate(context.Background(), indexURL)
	var cerr *calendar.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}

	cal := calendar.New()
	cal.Set("autumn-cup", calendar.Date{Year: 2015, Month: 10})
	ds, _, err := newTestAggregator(f, cal, Options{}).Aggregate(context.Background(), indexURL)
	if err != nil {
		t.Fatalf("Aggregate with calendar entry: %v", err)
	}
	if s := ds.Seasons["autumn-cup"]; s == nil || s.Year != 2015 || s.Month != 10 {
		t.Errorf("autumn-cup season = %+v", s)
	}
}

func TestAggregateIndexUnavailable(t *testing.T) {
	_, _, err := newTestAggregator(fakeFetcher{}, calendar.New(), Options{}).Aggregate(context.Background(), indexURL)
	var terr *scraper.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestAggregateOverHTTP(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/archives.htm", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexPage))
	})
	mux.HandleFunc("/archives/1605.htm", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(season1605))
	})
	mux.HandleFunc("/archives/1609.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(season1609))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	htmlDir := t.TempDir()
	fetcher := scraper.NewFetcher(5*time.Second, zerolog.Nop())
	agg := newTestAggregator(fetcher, calendar.New(), Options{Workers: 3, HTMLDir: htmlDir})

	ds, summary, err := agg.Aggregate(context.Background(), server.URL+"/archives.htm")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if summary.TotalSeasons != 2 || summary.TotalMatches != 3 {
		t.Errorf("summary = %+v", summary)
	}
	if len(summary.Failed) != 4 {
		t.Errorf("got %d failed seasons, want 4", len(summary.Failed))
	}
	if ds.Players["Kim Lee"].Seasons["1609"].Matches["Jo Smith"] != "0-3" {
		t.Errorf("Kim Lee 1609 = %+v", ds.Players["Kim Lee"].Seasons["1609"])
	}

	if _, err := os.Stat(filepath.Join(htmlDir, "1605.htm")); err != nil {
		t.Errorf("season page snapshot missing: %v", err)
	}
}
