package fidelity

import (
	"regexp"
	"strings"
)

var nonWordRe = regexp.MustCompile(`[^\w\s]`)
var whitespaceRe = regexp.MustCompile(`\s+`)

// normalizeForComparison lowercases text, strips punctuation, and collapses
// whitespace, so two OCR engines' differing formatting never shows up as
// disagreement. Grounded on normalize_for_comparison in
// original_source/scripts/run_tesseract_canary.py.
func normalizeForComparison(text string) string {
	text = strings.ToLower(text)
	text = nonWordRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// tokenizeWords splits normalized text on whitespace, the unit SequenceRatio
// compares.
func tokenizeWords(text string) []string {
	return strings.Fields(text)
}

// descriptionModePatterns catch a vision-OCR model describing the page
// image instead of transcribing it, e.g. "The image shows a scanned
// letter...". Verbatim from original_source/scripts/run_tesseract_canary.py
// and scripts/fix_critical_fidelity.py, which carry the identical list.
var descriptionModePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)The image (?:is|shows|contains|appears|displays|presents)`),
	regexp.MustCompile(`(?i)This (?:is a|appears to be a) scanned`),
	regexp.MustCompile(`(?i)The document (?:is|appears|shows|contains)`),
	regexp.MustCompile(`(?i)(?:scanned|photographed) (?:image|copy|document) of`),
	regexp.MustCompile(`(?i)The (?:text|content) (?:of the|in the) (?:image|document)`),
	regexp.MustCompile(`(?i)This image (?:is|shows|contains)`),
}

// detectDescriptionMode reports whether the first 500 characters of text
// match a description-mode marker.
func detectDescriptionMode(text string) bool {
	head := text
	if len(head) > 500 {
		head = head[:500]
	}
	for _, p := range descriptionModePatterns {
		if p.MatchString(head) {
			return true
		}
	}
	return false
}

// firstNWords returns the first n whitespace-delimited words of text,
// rejoined with single spaces.
func firstNWords(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

// classifyRiskTier applies spec §4.7's disjoint score bands: description
// mode always forces critical regardless of score, otherwise the canary
// score is bucketed against the three configured thresholds.
func classifyRiskTier(canaryScore float64, descriptionMode bool, criticalBelow, highBelow, mediumBelow float64) string {
	switch {
	case descriptionMode:
		return "critical"
	case canaryScore < criticalBelow:
		return "critical"
	case canaryScore < highBelow:
		return "high"
	case canaryScore < mediumBelow:
		return "medium"
	default:
		return "low"
	}
}
