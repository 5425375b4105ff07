// Package titleparse recovers best-effort metadata from a catalog result's
// raw title string, trying three era-specific formats in order before
// falling back to a bare letter-identifier match. Grounded on
// scraper/parser.py's parse_title_metadata, parse_results,
// extract_year_from_tags, and extract_year_from_url (original_source/).
package titleparse

import (
	"regexp"
	"strconv"
	"strings"
)

// Metadata is the best-effort result of parsing a title string. Any field
// may be empty when the title does not match a known era format.
type Metadata struct {
	RequestorName string
	LetterID      string
	LetterDate    string
	City          string
}

var (
	// Modern: "Name - A-24-006 - Date - City"
	modernRe = regexp.MustCompile(`(?i)^\s*(.*?)\s*-\s*([AIM]-?\d{2}-?\d{3,4})\s*-\s*([^-]+?)\s*-\s*(.+?)\s*$`)

	// 1984-1994: "Name, Desc Year: YYYY Advice Letter # N"
	era8494Re = regexp.MustCompile(`(?i)^\s*([^,]+),\s*.*?Year:\s*(\d{4})\s*Advice\s*Letter\s*#\s*(\S+)`)

	// 1995-2019: "Year: YYYY Advice Letter # N" (name prefix optional)
	era9519Re = regexp.MustCompile(`(?i)Year:\s*(\d{4})\s*Advice\s*Letter\s*#\s*(\S+)`)

	// Bare letter-identifier fallback, e.g. "A-24-006" or "83A195" appearing
	// anywhere in the title.
	letterIDFallbackRe = regexp.MustCompile(`(?i)\b([AIM]-?\d{2}-?\d{3,4}|\d{2}[AIM]\d{2,4})\b`)
)

// Parse tries, in order: the modern dashed format, the 1984-1994
// "Year:"-with-description format, the 1995-2019 bare "Year:" format, and
// finally a letter-identifier-only fallback. The first format that matches
// wins; later formats are not consulted.
func Parse(title string) Metadata {
	title = strings.TrimSpace(title)

	if m := modernRe.FindStringSubmatch(title); m != nil {
		return Metadata{
			RequestorName: strings.TrimSpace(m[1]),
			LetterID:      normalizeLetterID(m[2]),
			LetterDate:    strings.TrimSpace(m[3]),
			City:          strings.TrimSpace(m[4]),
		}
	}

	if m := era8494Re.FindStringSubmatch(title); m != nil {
		return Metadata{
			RequestorName: strings.TrimSpace(m[1]),
			LetterDate:    m[2],
			LetterID:      normalizeLetterID(m[3]),
		}
	}

	if m := era9519Re.FindStringSubmatch(title); m != nil {
		prefix := strings.TrimSpace(title[:strings.Index(strings.ToLower(title), "year:")])
		prefix = strings.TrimRight(prefix, ",- \t")
		return Metadata{
			RequestorName: prefix,
			LetterDate:    m[1],
			LetterID:      normalizeLetterID(m[2]),
		}
	}

	if m := letterIDFallbackRe.FindStringSubmatch(title); m != nil {
		return Metadata{LetterID: normalizeLetterID(m[1])}
	}

	return Metadata{}
}

// normalizeLetterID uppercases and trims a raw identifier match; the full
// canonicalisation into "X-YY-NNN" (including OCR-misread-prefix repair)
// is citation.NormalizeLetterID, used downstream when resolving citations
// rather than here, where the source string is still catalog metadata.
func normalizeLetterID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

var (
	tagYearRe = regexp.MustCompile(`\b(19[5-9]\d|20[0-4]\d)\b`)
	urlYearRe = regexp.MustCompile(`/(\d{4})/`)
)

// YearFromTags extracts a four-digit year from a tag string such as
// "1998,advice-letter", matching scraper/parser.py:extract_year_from_tags.
func YearFromTags(tags string) (int, bool) {
	if m := tagYearRe.FindString(tags); m != "" {
		y, err := strconv.Atoi(m)
		if err == nil {
			return y, true
		}
	}
	return 0, false
}

// YearFromURL extracts a four-digit year from a path segment such as
// ".../1998/...", matching scraper/parser.py:extract_year_from_url.
func YearFromURL(url string) (int, bool) {
	if m := urlYearRe.FindStringSubmatch(url); m != nil {
		y, err := strconv.Atoi(m[1])
		if err == nil {
			return y, true
		}
	}
	return 0, false
}
