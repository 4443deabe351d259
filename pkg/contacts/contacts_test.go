package contacts

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/myusername/squash-ladder/pkg/parser"
)

const memberPage = `<html><body><table><tr>
<td class="MainContainerCell">
<p>Members of the club, write to them directly.</p>
<p>
Jo Smith :: joDOTsmithATexampleDOTorg<br>
Anna Müller :: annaDOTmullerATexampleDOTorg<br>
Peter Pan :: ppanATneverlandDOTorg<br>
Kim Lee :: no address<br>
Bob Dylan :: bobATmusicDOTorg<br>
Bob Marley :: bmarleyATmusicDOTorg
</p>
</td></tr></table></body></html>`

func TestParseDirectory(t *testing.T) {
	dir, err := ParseDirectory(memberPage)
	if err != nil {
		t.Fatalf("ParseDirectory: %v", err)
	}
	want := map[string]string{
		"josmith":    "jo.smith@example.org",
		"annamuller": "anna.muller@example.org",
		"peterpan":   "ppan@neverland.org",
		"bobdylan":   "bob@music.org",
		"bobmarley":  "bmarley@music.org",
	}
	if diff := cmp.Diff(want, dir.emails); diff != "" {
		t.Errorf("directory mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDirectoryStructureErrors(t *testing.T) {
	for _, page := range []string{
		`<html><body><p>nothing</p></body></html>`,
		`<table><tr><td class="MainContainerCell"><p>only one paragraph</p></td></tr></table>`,
	} {
		_, err := ParseDirectory(page)
		var serr *parser.StructureError
		if !errors.As(err, &serr) {
			t.Errorf("expected StructureError, got %v", err)
		}
	}
}

func TestFind(t *testing.T) {
	dir := NewDirectory(map[string]string{
		"Jo Smith":   "jo.smith@example.org",
		"Peter Pan":  "ppan@neverland.org",
		"Bob Dylan":  "bob@music.org",
		"Bob Marley": "bmarley@music.org",
	})

	tests := []struct {
		name string
		want []string
	}{
		{"Jo Smith", []string{"jo.smith@example.org"}},
		{"JO SMITH (1st to finish)", []string{"jo.smith@example.org"}},
		// surname found in a single member name
		{"Pete Pan", []string{"ppan@neverland.org"}},
		// two Bobs, only one address holds the surname
		{"Bob Marl", []string{"bmarley@music.org"}},
		// a first name with a space never matches a member key
		{"Bob Marley Jr", nil},
		{"Robert Marley", []string{"bmarley@music.org"}},
		{"Bob Smithers", []string{"bob@music.org", "bmarley@music.org"}},
		{"Anna Karenina", nil},
		{"42", nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, dir.Find(tt.name)); diff != "" {
			t.Errorf("Find(%q) mismatch (-want +got):\n%s", tt.name, diff)
		}
	}
}

func TestFindNarrowsByAddress(t *testing.T) {
	dir := NewDirectory(map[string]string{
		"Tom Jones":     "tj@example.org",
		"Tom Jonestown": "jonestown@example.org",
	})
	// both names contain "jones", only one address does
	if diff := cmp.Diff([]string{"jonestown@example.org"}, dir.Find("Thomas Jones")); diff != "" {
		t.Errorf("Find mismatch (-want +got):\n%s", diff)
	}
}
