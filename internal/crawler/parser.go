package crawler

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

// SearchResult is one parsed catalog entry, matching scraper/parser.py's
// SearchResult dataclass (original_source/).
type SearchResult struct {
	Title     string
	BinaryURL string
	Tags      string
}

// The catalog's markup is not guaranteed well-formed, so parsing relies
// only on a small family of regexes anchored to stable text markers, per
// spec §4.1 and §6 ("Catalog HTTP"), rather than an HTML parser.
var (
	hitRe       = regexp.MustCompile(`(?is)<div class="hit"[^>]*>(.*?)</div>\s*</div>`)
	linkRe      = regexp.MustCompile(`(?is)<a[^>]+href="([^"]+\.pdf[^"]*)"[^>]*>(.*?)</a>`)
	tagsRe      = regexp.MustCompile(`(?is)<span class="tags?"[^>]*>(.*?)</span>`)
	resultCntRe = regexp.MustCompile(`(?i)([\d,]+)\s+results?\b`)
	pageCntRe   = regexp.MustCompile(`(?i)Page\s+\d+\s+of\s+(\d+)`)
)

// ParseResults extracts one SearchResult per result-entry block on a page.
func ParseResults(pageHTML string) []SearchResult {
	var out []SearchResult
	for _, block := range hitRe.FindAllStringSubmatch(pageHTML, -1) {
		body := block[1]

		link := linkRe.FindStringSubmatch(body)
		if link == nil {
			continue
		}

		result := SearchResult{
			BinaryURL: html.UnescapeString(strings.TrimSpace(link[1])),
			Title:     cleanText(link[2]),
		}
		if tags := tagsRe.FindStringSubmatch(body); tags != nil {
			result.Tags = cleanText(tags[1])
		}
		out = append(out, result)
	}
	return out
}

// ResultCount extracts the catalog's reported total result count for a
// year's search.
func ResultCount(pageHTML string) (int, bool) {
	m := resultCntRe.FindStringSubmatch(pageHTML)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// PageCount extracts the catalog's reported "Page X of Y" total.
func PageCount(pageHTML string) (int, bool) {
	m := pageCntRe.FindStringSubmatch(pageHTML)
	if m == nil {
		return 1, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 1, false
	}
	return n, true
}

var tagStripRe = regexp.MustCompile(`(?s)<[^>]+>`)

func cleanText(s string) string {
	s = tagStripRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
