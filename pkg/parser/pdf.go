package parser

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// SeasonDate is one season of the league calendar
type SeasonDate struct {
	Key   string
	Year  int
	Month int
}

// ReadPDFText reads a PDF file and returns its text content
func ReadPDFText(pdfPath string) (string, error) {
	// Open the PDF file
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("error opening PDF: %w", err)
	}
	defer f.Close()

	// Extract plain text from the PDF
	plainText, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("error extracting text from PDF: %w", err)
	}

	bytes, err := io.ReadAll(plainText)
	if err != nil {
		return "", fmt.Errorf("error reading plain text from PDF: %w", err)
	}

	return string(bytes), nil
}

var (
	// "1605 2016 5"
	numericDateRegex = regexp.MustCompile(`^(?:Season\s+)?([\w-]*\d[\w-]*)\s+(\d{4})\s+(\d{1,2})$`)
	// "Season 1605 - May 2016"
	namedDateRegex = regexp.MustCompile(`^(?:Season\s+)?([\w-]*\d[\w-]*)\s*[-:]?\s*([A-Za-z]{3,})\.?\s+(\d{4})$`)
)

// ExtractSeasonDatesFromText parses the text of a league calendar and
// returns the seasons it lists, in order
func ExtractSeasonDatesFromText(text string) []SeasonDate {
	var dates []SeasonDate

	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}

		if m := numericDateRegex.FindStringSubmatch(line); m != nil {
			year, _ := strconv.Atoi(m[2])
			month, _ := strconv.Atoi(m[3])
			if month >= 1 && month <= 12 {
				dates = append(dates, SeasonDate{Key: m[1], Year: year, Month: month})
			}
			continue
		}

		if m := namedDateRegex.FindStringSubmatch(line); m != nil {
			month, ok := parseMonthName(m[2])
			if !ok {
				continue
			}
			year, _ := strconv.Atoi(m[3])
			dates = append(dates, SeasonDate{Key: m[1], Year: year, Month: month})
		}
	}

	return dates
}

// parseMonthName accepts full or abbreviated English month names
func parseMonthName(name string) (int, bool) {
	for _, layout := range []string{"January", "Jan"} {
		if t, err := time.Parse(layout, name); err == nil {
			return int(t.Month()), true
		}
	}
	return 0, false
}
