// Package parser provides functionality to parse league data from archive pages and calendars
package parser

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/myusername/squash-ladder/pkg/names"
	"github.com/myusername/squash-ladder/pkg/result"
	"github.com/myusername/squash-ladder/pkg/scraper"
)

// Rank of player rows found before any division header
const noDivision = -1

// Archived pages wrap their tables in at most one frame
const maxSubDocumentHops = 1

var (
	divisionRegex       = regexp.MustCompile(`\bDivision\b`)
	divisionHeaderRegex = regexp.MustCompile(`^.*\bDivision\s*(\d{1,2})[^\w]*$`)
	positionRegex       = regexp.MustCompile(`^[A-Z]$`)
	// "Firstname SURNAME", the layout of the oldest archives
	nameLikeRegex   = regexp.MustCompile(`^[\p{L}'.\-]+(?:\s+[\p{L}'.\-]+)*\s+[\p{Lu}'\-]{2,}`)
	refreshURLRegex = regexp.MustCompile(`(?i)url\s*=\s*['"]?([^'"\s;]+)`)
)

// Pair is one fixture, keyed from the side of the player whose row holds it
type Pair struct {
	Home string
	Away string
}

// Page is everything extracted from one season page
type Page struct {
	// Divisions maps the division rank to its players in table order
	Divisions map[int][]string
	// Matches holds each fixture once, in the orientation it was read
	Matches map[Pair]result.Result
	// Results lists every result of a player from their own side
	Results map[string][]result.Result
}

func newPage() *Page {
	return &Page{
		Divisions: make(map[int][]string),
		Matches:   make(map[Pair]result.Result),
		Results:   make(map[string][]result.Result),
	}
}

// add stores a fixture, refusing one that is already known in either orientation
func (p *Page) add(home, away string, r result.Result) error {
	if home == away {
		return &InvariantError{Reason: fmt.Sprintf("player %q listed twice in one division", home)}
	}
	if _, ok := p.Matches[Pair{Home: away, Away: home}]; ok {
		return &InvariantError{Reason: fmt.Sprintf("fixture %s vs %s read from both sides", home, away)}
	}
	if _, ok := p.Matches[Pair{Home: home, Away: away}]; ok {
		return &InvariantError{Reason: fmt.Sprintf("fixture %s vs %s read twice", home, away)}
	}

	p.Matches[Pair{Home: home, Away: away}] = r
	p.Results[home] = append(p.Results[home], r)
	p.Results[away] = append(p.Results[away], r.Invert())
	return nil
}

// Ranks returns the division ranks in ascending order
func (p *Page) Ranks() []int {
	ranks := make([]int, 0, len(p.Divisions))
	for rank := range p.Divisions {
		ranks = append(ranks, rank)
	}
	sort.Ints(ranks)
	return ranks
}

// Lookup returns the result of a against b, reading the fixture from
// whichever side it was stored
func (p *Page) Lookup(a, b string) result.Result {
	if r, ok := p.Matches[Pair{Home: a, Away: b}]; ok {
		return r
	}
	if r, ok := p.Matches[Pair{Home: b, Away: a}]; ok {
		return r.Invert()
	}
	return result.Empty
}

// PossibleMatches is the number of fixtures of a full round robin in every division
func (p *Page) PossibleMatches() int {
	total := 0
	for _, players := range p.Divisions {
		n := len(players)
		total += n * (n - 1) / 2
	}
	return total
}

// playerRow is a table row holding one player and their results
type playerRow struct {
	name      string
	cells     *goquery.Selection
	resultCol int
}

// Extractor recovers divisions and results from season pages
type Extractor struct {
	fetcher scraper.PageFetcher
	names   *names.Dictionary
	logger  zerolog.Logger
}

// NewExtractor creates an extractor. fetcher is only used for pages that keep
// their tables in a sub-document.
func NewExtractor(fetcher scraper.PageFetcher, dict *names.Dictionary, logger zerolog.Logger) *Extractor {
	return &Extractor{fetcher: fetcher, names: dict, logger: logger}
}

// Extract parses a season page located at pageURL
func (e *Extractor) Extract(ctx context.Context, pageURL, htmlContent string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("error parsing page: %w", err)
	}

	for hop := 0; doc.Find("table").Length() == 0; hop++ {
		if hop == maxSubDocumentHops {
			return nil, &StructureError{Reason: "sub-document has no tables", Text: pageURL}
		}
		ref, ok := subDocumentRef(doc)
		if !ok || e.fetcher == nil {
			return nil, &StructureError{Reason: "page has no tables and no sub-document", Text: pageURL}
		}

		pageURL = scraper.ResolveRelativeURL(pageURL, ref)
		e.logger.Debug().Str("url", pageURL).Msg("following sub-document")

		content, err := scraper.FetchWithFallback(ctx, e.fetcher, pageURL)
		if err != nil {
			return nil, fmt.Errorf("error fetching sub-document: %w", err)
		}
		doc, err = goquery.NewDocumentFromReader(strings.NewReader(content))
		if err != nil {
			return nil, fmt.Errorf("error parsing sub-document: %w", err)
		}
	}

	return e.ExtractDocument(doc)
}

// subDocumentRef finds the frame, refresh or link that replaces a table-less page
func subDocumentRef(doc *goquery.Document) (string, bool) {
	if src, ok := doc.Find("frame[src], iframe[src]").First().Attr("src"); ok && strings.TrimSpace(src) != "" {
		return strings.TrimSpace(src), true
	}

	if content, ok := doc.Find(`meta[http-equiv]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.EqualFold(s.AttrOr("http-equiv", ""), "refresh")
	}).First().Attr("content"); ok {
		if m := refreshURLRegex.FindStringSubmatch(content); m != nil {
			return m[1], true
		}
	}

	var ref string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		path := strings.SplitN(href, "#", 2)[0]
		if strings.HasSuffix(path, ".htm") || strings.HasSuffix(path, ".html") {
			ref = href
			return false
		}
		return true
	})
	return ref, ref != ""
}

// ExtractDocument extracts divisions and fixtures from a page's tables
func (e *Extractor) ExtractDocument(doc *goquery.Document) (*Page, error) {
	divisions := make(map[int][]playerRow)
	rank := noDivision
	var scanErr error
	// New names only reach the dictionary once the whole page is valid
	batch := e.names.Batch()

	// Walk every leaf row in document order; rows wrapping a nested table
	// belong to the page layout
	doc.Find("tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if row.Find("table").Length() > 0 {
			return true
		}
		cells := row.ChildrenFiltered("td, th")

		// Check if this starts a new division or not
		if header, ok := divisionHeader(cells); ok {
			r, err := parseDivisionRank(header)
			if err != nil {
				scanErr = err
				return false
			}
			rank = r
			return true
		}

		entry, ok := playerRowOf(cells, batch)
		if !ok {
			return true
		}
		if rank == noDivision {
			scanErr = &InvariantError{Reason: fmt.Sprintf("player row %q before any division header", entry.name)}
			return false
		}
		divisions[rank] = append(divisions[rank], entry)
		return true
	})
	if scanErr != nil {
		return nil, scanErr
	}

	page := newPage()
	ranks := make([]int, 0, len(divisions))
	for r := range divisions {
		ranks = append(ranks, r)
	}
	sort.Ints(ranks)

	for _, r := range ranks {
		rows := divisions[r]

		// Only the upper triangle of the grid is read, so each fixture
		// comes from exactly one row
		for i, row := range rows {
			for j := i + 1; j < len(rows); j++ {
				col := row.resultCol + j
				if col >= row.cells.Length() {
					break
				}
				res := result.Decode(cellText(row.cells.Eq(col)))
				opponent := rows[j].name
				if row.name == "" || opponent == "" || res.IsEmpty() {
					continue
				}
				if err := page.add(row.name, opponent, res); err != nil {
					return nil, err
				}
			}
		}

		var players []string
		for _, row := range rows {
			if row.name != "" {
				players = append(players, row.name)
			}
		}
		if len(players) > 0 {
			page.Divisions[r] = players
		}
	}

	batch.Commit()
	e.checkDivisionSizes(page)
	return page, nil
}

// checkDivisionSizes logs pages whose divisions are not all the same size
func (e *Extractor) checkDivisionSizes(page *Page) {
	size := -1
	for _, r := range page.Ranks() {
		n := len(page.Divisions[r])
		if size == -1 {
			size = n
			continue
		}
		if n != size {
			e.logger.Debug().
				Int("rank", r).
				Int("players", n).
				Int("first_division_players", size).
				Msg("division size differs from first division")
		}
	}
}

// playerRowOf recognizes a row holding a player. Player rows start with a
// position letter followed by the name; some archives put an empty cell
// before the letter, which moves the name to the third cell.
func playerRowOf(cells *goquery.Selection, batch *names.Batch) (playerRow, bool) {
	if cells.Length() < 2 {
		return playerRow{}, false
	}
	first := cellText(cells.Eq(0))
	second := cellText(cells.Eq(1))

	nameCol := 1
	switch {
	case positionRegex.MatchString(first) && !positionRegex.MatchString(second):
	case first == "" && positionRegex.MatchString(second) && cells.Length() > 2 &&
		!positionRegex.MatchString(cellText(cells.Eq(2))):
		nameCol = 2
	case nameLikeRegex.MatchString(second):
	default:
		return playerRow{}, false
	}

	name, _ := batch.Canonical(cellText(cells.Eq(nameCol)))
	return playerRow{name: name, cells: cells, resultCol: nameCol + 1}, true
}

// divisionHeader returns the text of the cell announcing a division
func divisionHeader(cells *goquery.Selection) (string, bool) {
	var header string
	cells.EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		text := cell.Text()
		if divisionRegex.MatchString(text) {
			header = text
			return false
		}
		return true
	})
	return header, header != ""
}

// parseDivisionRank extracts the rank from a header like "Division 5"
func parseDivisionRank(text string) (int, error) {
	clean := strings.Join(strings.Fields(text), " ")
	m := divisionHeaderRegex.FindStringSubmatch(clean)
	if m == nil {
		return 0, &StructureError{Reason: "invalid division header", Text: clean}
	}
	rank, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, &StructureError{Reason: "invalid division rank", Text: clean}
	}
	return rank, nil
}

func cellText(cell *goquery.Selection) string {
	return strings.TrimSpace(cell.Text())
}
