// Package aggregator crawls the league archive and merges every season into one dataset
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/myusername/squash-ladder/pkg/calendar"
	"github.com/myusername/squash-ladder/pkg/models"
	"github.com/myusername/squash-ladder/pkg/parser"
	"github.com/myusername/squash-ladder/pkg/scraper"
)

// DefaultWorkers bounds concurrent page downloads when no limit is configured
const DefaultWorkers = 4

// FailedSeason is a season left out of the dataset and why
type FailedSeason struct {
	Key    string
	URL    string
	Reason string
}

// Summary reports the outcome of a crawl
type Summary struct {
	TotalMatches int
	TotalSeasons int
	TotalPlayers int
	Failed       []FailedSeason
	Skipped      []string
}

// Options tune a crawl
type Options struct {
	// Workers bounds concurrent page downloads
	Workers int
	// Skip lists season keys known to be incomplete or malformed; they are
	// not fetched and not reported as failures
	Skip []string
	// HTMLDir, when set, receives a copy of every fetched season page
	HTMLDir string
}

// Aggregator builds the dataset from the archive index
type Aggregator struct {
	fetcher   scraper.PageFetcher
	extractor *parser.Extractor
	calendar  *calendar.Calendar
	workers   int
	skip      map[string]bool
	htmlDir   string
	logger    zerolog.Logger
}

// New creates an aggregator
func New(fetcher scraper.PageFetcher, extractor *parser.Extractor, cal *calendar.Calendar, opts Options, logger zerolog.Logger) *Aggregator {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	skip := make(map[string]bool, len(opts.Skip))
	for _, key := range opts.Skip {
		skip[key] = true
	}
	return &Aggregator{
		fetcher:   fetcher,
		extractor: extractor,
		calendar:  cal,
		workers:   workers,
		skip:      skip,
		htmlDir:   opts.HTMLDir,
		logger:    logger,
	}
}

type seasonPage struct {
	link    scraper.ArchiveLink
	url     string
	content string
	err     error
}

// Aggregate crawls every season linked from the index page. Seasons that
// cannot be fetched or parsed are listed in the summary and skipped; a
// season missing from the calendar aborts the crawl.
func (a *Aggregator) Aggregate(ctx context.Context, indexURL string) (*models.Dataset, *Summary, error) {
	a.logger.Info().Str("url", indexURL).Msg("fetching archive index")
	index, err := a.fetcher.Fetch(ctx, indexURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch archive index: %w", err)
	}

	links, err := scraper.ExtractArchiveLinks(index)
	if err != nil {
		return nil, nil, err
	}

	summary := &Summary{}
	var pages []*seasonPage
	for _, link := range links {
		if a.skip[link.Key] {
			summary.Skipped = append(summary.Skipped, link.Key)
			continue
		}
		pages = append(pages, &seasonPage{
			link: link,
			url:  scraper.ResolveRelativeURL(indexURL, link.Href),
		})
	}
	a.logger.Info().
		Int("seasons", len(pages)).
		Int("skipped", len(summary.Skipped)).
		Msg("found archived seasons")

	a.fetchAll(ctx, pages)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	// Pages are merged in index order so the name dictionary and the
	// dataset do not depend on download timing
	ds := models.NewDataset()
	for _, page := range pages {
		log := a.logger.With().Str("season", page.link.Key).Str("url", page.url).Logger()

		if page.err != nil {
			log.Warn().Err(page.err).Msg("season page could not be fetched")
			summary.Failed = append(summary.Failed, FailedSeason{Key: page.link.Key, URL: page.url, Reason: page.err.Error()})
			continue
		}
		a.snapshot(page, log)

		extracted, err := a.extractor.Extract(ctx, page.url, page.content)
		if err != nil {
			if !isPageError(err) {
				return nil, nil, fmt.Errorf("season %s: %w", page.link.Key, err)
			}
			log.Warn().Err(err).Msg("season skipped")
			summary.Failed = append(summary.Failed, FailedSeason{Key: page.link.Key, URL: page.url, Reason: err.Error()})
			continue
		}

		if err := a.merge(ds, page.link.Key, extracted); err != nil {
			return nil, nil, err
		}
		log.Info().
			Int("divisions", len(extracted.Divisions)).
			Int("matches", len(extracted.Matches)).
			Msg("season merged")
	}

	summary.TotalSeasons = len(ds.Seasons)
	summary.TotalPlayers = len(ds.Players)
	summary.TotalMatches = ds.TotalMatches()
	return ds, summary, nil
}

// fetchAll downloads the season pages concurrently. Each page keeps its own
// error so one failure does not cancel the others.
func (a *Aggregator) fetchAll(ctx context.Context, pages []*seasonPage) {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, page := range pages {
		g.Go(func() error {
			page.content, page.err = scraper.FetchWithFallback(gCtx, a.fetcher, page.url)
			return nil
		})
	}
	_ = g.Wait()
}

// snapshot keeps a local copy of a fetched page
func (a *Aggregator) snapshot(page *seasonPage, log zerolog.Logger) {
	if a.htmlDir == "" {
		return
	}
	if err := os.MkdirAll(a.htmlDir, 0755); err != nil {
		log.Warn().Err(err).Msg("failed to create html directory")
		return
	}
	path := filepath.Join(a.htmlDir, page.link.File)
	if err := scraper.SaveContentToFile(path, page.content); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to save season page")
	}
}

// isPageError reports errors that only invalidate the page they came from
func isPageError(err error) bool {
	var terr *scraper.TransportError
	var serr *parser.StructureError
	var ierr *parser.InvariantError
	return errors.As(err, &terr) || errors.As(err, &serr) || errors.As(err, &ierr)
}

// merge adds one extracted season to the dataset. The season date is
// resolved before anything is written so a calendar error leaves the
// dataset untouched.
func (a *Aggregator) merge(ds *models.Dataset, key string, page *parser.Page) error {
	var date calendar.Date
	if len(page.Matches) > 0 {
		d, err := a.calendar.Lookup(key)
		if err != nil {
			return err
		}
		date = d
	}

	var roster []string
	for _, rank := range page.Ranks() {
		players := page.Divisions[rank]
		roster = append(roster, players...)

		for _, name := range players {
			p := ds.Player(name)
			if _, entered := p.Seasons[key]; !entered {
				p.SeasonsPlayed++
			}
			ps := p.Season(key, rank)

			for _, opponent := range players {
				if opponent == name {
					continue
				}
				r := page.Lookup(name, opponent)
				if r.IsEmpty() {
					continue
				}
				if _, recorded := ps.Matches[opponent]; recorded {
					continue
				}
				ps.Matches[opponent] = r
				p.TotalMatches++
				if r.Won() {
					ps.Wins++
					p.TotalWins++
				}
			}
		}
	}

	if len(page.Matches) == 0 {
		return nil
	}

	possible := page.PossibleMatches()
	completion := 0.0
	if possible > 0 {
		completion = float64(len(page.Matches)) / float64(possible)
	}
	ds.Seasons[key] = &models.Season{
		Key:        key,
		Year:       date.Year,
		Month:      date.Month,
		Divisions:  len(page.Divisions),
		NPlayers:   len(roster),
		Matches:    len(page.Matches),
		Completion: completion,
		Players:    roster,
	}
	return nil
}
