// Package result decodes the result cells of a league table into canonical scorelines
package result

import (
	"regexp"
	"strconv"
	"strings"
)

// Result is a canonical scoreline seen from one player's side, e.g. "3-1".
// A bare single digit is an older notation for a forfeited or partial match.
type Result string

// Empty marks a fixture that was not played or not recorded
const Empty Result = ""

// GamesToWin is the number of games needed to take a best-of-five match
const GamesToWin = 3

var (
	scorelineRegex = regexp.MustCompile(`^(\d)-(\d)$`)
	digitRegex     = regexp.MustCompile(`^\d$`)
)

// Decode parses the raw text of a result cell. Anything that is not a
// single-digit scoreline or a single digit decodes to Empty.
func Decode(raw string) Result {
	text := strings.Join(strings.Fields(raw), "")

	if scorelineRegex.MatchString(text) || digitRegex.MatchString(text) {
		return Result(text)
	}
	return Empty
}

// IsEmpty reports whether r carries no result
func (r Result) IsEmpty() bool {
	return r == Empty
}

// Invert returns the result as seen by the opponent.
// The opponent of a bare-digit forfeit is credited with "0".
func (r Result) Invert() Result {
	if m := scorelineRegex.FindStringSubmatch(string(r)); m != nil {
		return Result(m[2] + "-" + m[1])
	}
	if digitRegex.MatchString(string(r)) {
		return "0"
	}
	return Empty
}

// Differential returns games won minus games lost. A bare digit counts as
// the differential itself. ok is false for Empty or unparseable results.
func (r Result) Differential() (diff int, ok bool) {
	if m := scorelineRegex.FindStringSubmatch(string(r)); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		return a - b, true
	}
	if digitRegex.MatchString(string(r)) {
		d, _ := strconv.Atoi(string(r))
		return d, true
	}
	return 0, false
}

// Won reports whether the result is a win for the player holding it
func (r Result) Won() bool {
	diff, ok := r.Differential()
	return ok && diff > 0
}

// Score maps the differential onto [0,1]: 3-0 is 1, 0-3 is 0 and 3-2 is 2/3.
func (r Result) Score() (float64, bool) {
	diff, ok := r.Differential()
	if !ok {
		return 0, false
	}

	score := float64(diff) / GamesToWin
	score = (score + 1) / 2
	if score > 1 {
		score = 1
	} else if score < 0 {
		score = 0
	}
	return score, true
}
