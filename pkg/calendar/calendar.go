// Package calendar maps season keys to the calendar month each season started
package calendar

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/myusername/squash-ladder/pkg/parser"
)

// Date is the calendar month of a season
type Date struct {
	Year  int
	Month int
}

// ConfigError reports a season missing from the calendar. It means the
// static configuration is out of date.
type ConfigError struct {
	Key string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("season %q has no calendar entry", e.Key)
}

// Keys shaped like "1605" or "1412-1501" start in 20YY-MM
var shapedKeyRegex = regexp.MustCompile(`^(\d{2})(\d{2})(?:-\d{4})?$`)

// Calendar is the season-key to date table
type Calendar struct {
	mu      sync.RWMutex
	entries map[string]Date
}

// New returns an empty calendar
func New() *Calendar {
	return &Calendar{entries: make(map[string]Date)}
}

// Load reads a calendar file with one "key year month" line per season.
// Blank lines and lines starting with # are ignored. A missing file yields
// an empty calendar.
func Load(path string) (*Calendar, error) {
	c := New()
	if path == "" {
		return c, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open season calendar: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%s:%d: expected \"key year month\", got %q", path, lineNo, line)
		}
		year, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid year: %w", path, lineNo, err)
		}
		month, err := strconv.Atoi(fields[2])
		if err != nil || month < 1 || month > 12 {
			return nil, fmt.Errorf("%s:%d: invalid month %q", path, lineNo, fields[2])
		}
		c.entries[fields[0]] = Date{Year: year, Month: month}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read season calendar: %w", err)
	}

	return c, nil
}

// Lookup returns the date of a season. Keys missing from the table are
// recovered from their shape when possible, otherwise a *ConfigError is
// returned.
func (c *Calendar) Lookup(key string) (Date, error) {
	c.mu.RLock()
	d, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return d, nil
	}
	if d, ok := InferDate(key); ok {
		return d, nil
	}
	return Date{}, &ConfigError{Key: key}
}

// InferDate derives the date from a "YYMM" or "YYMM-YYMM" season key
func InferDate(key string) (Date, bool) {
	m := shapedKeyRegex.FindStringSubmatch(key)
	if m == nil {
		return Date{}, false
	}
	yy, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return Date{}, false
	}
	return Date{Year: 2000 + yy, Month: month}, true
}

// Set records the date of a season
func (c *Calendar) Set(key string, d Date) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = d
}

// Len returns the number of seasons in the table
func (c *Calendar) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Save writes the table sorted by key
func (c *Calendar) Save(path string) error {
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		d := c.entries[k]
		fmt.Fprintf(&b, "%s %d %d\n", k, d.Year, d.Month)
	}
	c.mu.RUnlock()

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write season calendar: %w", err)
	}
	return nil
}

// ImportText adds every season listed in a calendar text and returns how
// many were added or changed
func (c *Calendar) ImportText(text string) int {
	changed := 0
	for _, sd := range parser.ExtractSeasonDatesFromText(text) {
		d := Date{Year: sd.Year, Month: sd.Month}
		c.mu.Lock()
		if old, ok := c.entries[sd.Key]; !ok || old != d {
			c.entries[sd.Key] = d
			changed++
		}
		c.mu.Unlock()
	}
	return changed
}

// ImportPDF adds the seasons listed in a league calendar PDF
func (c *Calendar) ImportPDF(pdfPath string) (int, error) {
	text, err := parser.ReadPDFText(pdfPath)
	if err != nil {
		return 0, err
	}
	return c.ImportText(text), nil
}
