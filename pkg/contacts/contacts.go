// Package contacts matches league players to the club's member e-mail list
package contacts

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/myusername/squash-ladder/pkg/names"
	"github.com/myusername/squash-ladder/pkg/parser"
)

// Addresses are published as "userDOTnameATexampleDOTorg"
var obfuscatedRegex = regexp.MustCompile(`([.\-\w]*)AT([.\-\w]*)`)

// Directory maps name keys to member e-mail addresses
type Directory struct {
	emails map[string]string
}

// NewDirectory builds a directory from member names and their addresses
func NewDirectory(members map[string]string) *Directory {
	d := &Directory{emails: make(map[string]string, len(members))}
	for name, email := range members {
		if key := memberKey(name); key != "" {
			d.emails[key] = email
		}
	}
	return d
}

// ParseDirectory reads the member list of the club page. Members are listed
// one per line as "Name :: address" in the second paragraph of the main cell.
func ParseDirectory(htmlContent string) (*Directory, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("error parsing member page: %w", err)
	}

	cell := doc.Find("td.MainContainerCell").First()
	if cell.Length() == 0 {
		return nil, &parser.StructureError{Reason: "member page has no main cell"}
	}
	list := cell.Find("p").Eq(1)
	if list.Length() == 0 {
		return nil, &parser.StructureError{Reason: "member page has no member list"}
	}

	members := make(map[string]string)
	for _, line := range strings.Split(list.Text(), "\n") {
		name, address, ok := strings.Cut(strings.TrimSpace(line), "::")
		if !ok {
			continue
		}
		email, ok := decodeAddress(address)
		if !ok {
			continue
		}
		members[name] = email
	}
	return NewDirectory(members), nil
}

// decodeAddress turns "jDOTsmithATexampleDOTorg" into "j.smith@example.org"
func decodeAddress(text string) (string, bool) {
	m := obfuscatedRegex.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil || m[1] == "" || m[2] == "" {
		return "", false
	}
	user := strings.ReplaceAll(m[1], "DOT", ".")
	host := strings.ReplaceAll(m[2], "DOT", ".")
	return user + "@" + host, true
}

// Len returns the number of members with an address
func (d *Directory) Len() int {
	return len(d.emails)
}

// Find returns the addresses that may belong to the player. An exact name
// match wins. Otherwise members whose name contains the player's first or
// last name are candidates, narrowed to those whose address contains the
// last name when more than one matches. Several results mean the match is
// ambiguous; none means the player is unknown.
func (d *Directory) Find(name string) []string {
	key := memberKey(name)
	if key == "" {
		return nil
	}
	if email, ok := d.emails[key]; ok {
		return []string{email}
	}

	first, last := splitName(names.Clean(name))
	var candidates []string
	for k := range d.emails {
		if strings.Contains(k, last) || strings.Contains(k, first) {
			candidates = append(candidates, k)
		}
	}
	sort.Strings(candidates)

	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return []string{d.emails[candidates[0]]}
	}

	var narrowed []string
	for _, k := range candidates {
		if strings.Contains(d.emails[k], last) {
			narrowed = append(narrowed, k)
		}
	}
	if len(narrowed) == 1 {
		return []string{d.emails[narrowed[0]]}
	}

	emails := make([]string, len(candidates))
	for i, k := range candidates {
		emails[i] = d.emails[k]
	}
	return emails
}

func memberKey(name string) string {
	return names.Key(names.Clean(name))
}

// splitName splits a cleaned name at its last space. A single word is both
// the first and the last name.
func splitName(cleaned string) (first, last string) {
	i := strings.LastIndex(cleaned, " ")
	if i < 0 {
		return cleaned, cleaned
	}
	return cleaned[:i], cleaned[i+1:]
}
