// Package names turns the raw text of a player cell into a stable player identity
package names

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	finishRegex = regexp.MustCompile(`\(\s*\d+\s*(?:st|nd|rd|th)\s+to\s+finish\s*\)`)
	homeRegex   = regexp.MustCompile(`\bhome\b`)
	noiseRegex  = regexp.MustCompile(`[#+0-9().]`)
	spaceRegex  = regexp.MustCompile(`\s+`)
	letterRegex = regexp.MustCompile(`[a-z]`)
)

// Phrases that annotate a player's availability rather than their name
var noisePhrases = []string{"out for summer", "unavailable"}

// Trailing tokens left over from annotations like "Smith - out"
var noiseSuffixes = []string{" -", " out", " ?"}

// Clean lowercases raw cell text, folds it to ASCII and strips the
// annotations found in archived tables. Text without letters cleans to "".
func Clean(raw string) string {
	text := strings.ToLower(raw)
	text = strings.NewReplacer("\n", " ", "\r", " ", "\u00a0", " ").Replace(text)
	text = foldASCII(text)

	text = finishRegex.ReplaceAllString(text, " ")
	for _, phrase := range noisePhrases {
		text = strings.ReplaceAll(text, phrase, " ")
	}
	text = homeRegex.ReplaceAllString(text, " ")
	text = noiseRegex.ReplaceAllString(text, "")
	text = strings.TrimSpace(spaceRegex.ReplaceAllString(text, " "))

	for trimmed := true; trimmed; {
		trimmed = false
		for _, suffix := range noiseSuffixes {
			if strings.HasSuffix(text, suffix) {
				text = strings.TrimSpace(strings.TrimSuffix(text, suffix))
				trimmed = true
			}
		}
	}

	if !letterRegex.MatchString(text) {
		return ""
	}
	return text
}

// Key is the dictionary key of a cleaned name: the name without spaces
func Key(cleaned string) string {
	return strings.ReplaceAll(cleaned, " ", "")
}

// foldASCII replaces accented letters with their closest ASCII form and
// drops everything else outside ASCII
func foldASCII(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	folded, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return folded
}

// Dictionary maps name keys to the preferred display name. Unknown keys are
// added on first sight, so the first spelling seen becomes canonical.
type Dictionary struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewDictionary returns an empty dictionary
func NewDictionary() *Dictionary {
	return &Dictionary{entries: make(map[string]string)}
}

// LoadDictionary reads a two-column key,value file. A missing file yields an
// empty dictionary.
func LoadDictionary(path string) (*Dictionary, error) {
	d := NewDictionary()
	if path == "" {
		return d, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open name dictionary: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comment = '#'

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read name dictionary %s: %w", path, err)
		}
		if len(record) < 2 {
			continue
		}
		key := strings.TrimSpace(record[0])
		value := strings.TrimSpace(record[1])
		if key != "" && value != "" {
			d.entries[key] = value
		}
	}

	return d, nil
}

// Canonical returns the display name and key for raw cell text. Both are
// empty when the text holds no name.
func (d *Dictionary) Canonical(raw string) (name, key string) {
	cleaned := Clean(raw)
	if cleaned == "" {
		return "", ""
	}
	key = Key(cleaned)

	d.mu.Lock()
	defer d.mu.Unlock()

	if name, ok := d.entries[key]; ok {
		return name, key
	}
	name = displayName(cleaned)
	d.entries[key] = name
	return name, key
}

// displayName title-cases a cleaned name. Every word starts upper case,
// including the part after an apostrophe as in "O'Brien".
func displayName(cleaned string) string {
	name := []rune(cases.Title(language.English).String(cleaned))
	for i := 1; i < len(name); i++ {
		if name[i-1] == '\'' {
			name[i] = unicode.ToUpper(name[i])
		}
	}
	return string(name)
}

// Batch resolves names like the dictionary does but keeps new entries aside
// until Commit, so an abandoned batch leaves the dictionary unchanged
type Batch struct {
	dict  *Dictionary
	added map[string]string
}

// Batch starts a batch of lookups against the dictionary
func (d *Dictionary) Batch() *Batch {
	return &Batch{dict: d, added: make(map[string]string)}
}

// Canonical returns the display name and key for raw cell text, as
// Dictionary.Canonical would after the batch's earlier lookups
func (b *Batch) Canonical(raw string) (name, key string) {
	cleaned := Clean(raw)
	if cleaned == "" {
		return "", ""
	}
	key = Key(cleaned)
	if name, ok := b.dict.Lookup(key); ok {
		return name, key
	}
	if name, ok := b.added[key]; ok {
		return name, key
	}
	name = displayName(cleaned)
	b.added[key] = name
	return name, key
}

// Commit adds the batch's new names to the dictionary. Keys added to the
// dictionary since the batch started keep their existing name.
func (b *Batch) Commit() {
	b.dict.mu.Lock()
	defer b.dict.mu.Unlock()
	for key, name := range b.added {
		if _, ok := b.dict.entries[key]; !ok {
			b.dict.entries[key] = name
		}
	}
	b.added = make(map[string]string)
}

// Lookup returns the display name stored for key
func (d *Dictionary) Lookup(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name, ok := d.entries[key]
	return name, ok
}

// Len returns the number of known keys
func (d *Dictionary) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Save writes the dictionary as key,value lines sorted by key
func (d *Dictionary) Save(path string) error {
	d.mu.Lock()
	keys := make([]string, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	records := make([][]string, 0, len(keys))
	for _, k := range keys {
		records = append(records, []string{k, d.entries[k]})
	}
	d.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create name dictionary: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write name dictionary: %w", err)
	}
	return nil
}
