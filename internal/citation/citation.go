// Package citation implements the Citation Extractor (C5.2) and the
// Self-citation filter (C5.3). Grounded on scraper/citation_extractor.py's
// docstring (original_source/, truncated by retrieval but explicit about
// the four output lists and the OCR-misread-prefix repair rule) and spec
// §4.5.2/§4.5.3.
package citation

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// References is the Citation Extractor's output: four sorted,
// de-duplicated lists, matching the "citations" sub-object of the
// Structured Record described in spec §3.
type References struct {
	Statutes       []string
	Regulations    []string
	PriorOpinions  []string
	ExternalRefs   []string
}

// Bands bounds the configured statutory/regulatory ranges a raw section
// number must fall within to be accepted as a real reference, per spec
// §4.5.2. Kept here rather than importing internal/config to stay
// dependency-free.
type Bands struct {
	StatutePrimaryLow, StatutePrimaryHigh       int
	StatuteConflictsLow, StatuteConflictsHigh   int
	RegulationLow, RegulationHigh               int
}

var (
	govCodeSectionRe = regexp.MustCompile(`(?i)government\s+code\s+sections?\s+(\d{3,5})(\s*\(\s*[a-z0-9]+\s*\))?`)
	govCodeSymbolRe  = regexp.MustCompile(`(?i)gov\.?\s*code\s*§+\s*(\d{3,5})(\s*\(\s*[a-z0-9]+\s*\))?`)
	bareSectionRe    = regexp.MustCompile(`(?i)\bsection\s+(\d{3,5})(\s*\(\s*[a-z0-9]+\s*\))?\b`)
	bareSymbolRe     = regexp.MustCompile(`§\s*(\d{3,5})(\s*\(\s*[a-z0-9]+\s*\))?`)

	regulationRe = regexp.MustCompile(`(?i)(?:regulation|reg\.?|2\s*cal\.?\s*code\s*regs?\.?\s*§?)\s*(\d{4,5})(\s*\(\s*[a-z0-9]+\s*\))?`)

	disclaimerRe = regexp.MustCompile(`(?i)not\s+providing\s+advice\s+under`)

	modernOpinionRe    = regexp.MustCompile(`(?i)\b([AIM])-?(\d{2})-?(\d{3})\b`)
	misreadOpinionRe   = regexp.MustCompile(`\b([41])-?(\d{2})-?(\d{3})\b`)
	oldDigitOpinionRe  = regexp.MustCompile(`\b(\d{2})([A-Z])(\d{3})\b`)
	contextualOpinionRe = regexp.MustCompile(`(?i)(?:in\s+re|opinion|file\s+no\.?)\s*:?\s*([AIM])-?(\d{2})-?(\d{3})`)

	reporterRe = []*regexp.Regexp{
		regexp.MustCompile(`\d+\s+Cal\.\s*(?:2d|3d|4th|5th)?\s*\d+`),
		regexp.MustCompile(`\d+\s+Cal\.\s*App\.\s*(?:2d|3d|4th|5th)?\s*\d+`),
		regexp.MustCompile(`\d+\s+U\.S\.\s*\d+`),
		regexp.MustCompile(`\d+\s+F\.\s*(?:2d|3d)?\s*\d+`),
		regexp.MustCompile(`\d+\s+F\.\s*Supp\.\s*(?:2d|3d)?\s*\d+`),
	}

	spacingAroundParenRe = regexp.MustCompile(`\s*\(\s*([a-z0-9]+)\s*\)`)
)

// Extract scans text for all four reference categories, per spec §4.5.2.
func Extract(text string, bands Bands) References {
	return References{
		Statutes:      extractStatutes(text, bands),
		Regulations:   extractRegulations(text, bands),
		PriorOpinions: extractPriorOpinions(text),
		ExternalRefs:  extractExternalRefs(text),
	}
}

func extractStatutes(text string, bands Bands) []string {
	type hit struct {
		number int
		idx    int
	}
	var hits []hit
	conflictsIdx := map[int][]int{} // section number -> match start offsets, for disclaimer suppression

	consider := func(matches [][]int) {
		for _, m := range matches {
			numStr := text[m[2]:m[3]]
			n, err := strconv.Atoi(numStr)
			if err != nil {
				continue
			}
			inPrimary := n >= bands.StatutePrimaryLow && n <= bands.StatutePrimaryHigh
			inConflicts := n >= bands.StatuteConflictsLow && n <= bands.StatuteConflictsHigh
			if !inPrimary && !inConflicts {
				continue
			}
			if inConflicts && !inPrimary {
				conflictsIdx[n] = append(conflictsIdx[n], m[0])
			}
			hits = append(hits, hit{number: n, idx: m[0]})
		}
	}

	consider(govCodeSectionRe.FindAllStringSubmatchIndex(text, -1))
	consider(govCodeSymbolRe.FindAllStringSubmatchIndex(text, -1))
	consider(bareSectionRe.FindAllStringSubmatchIndex(text, -1))
	consider(bareSymbolRe.FindAllStringSubmatchIndex(text, -1))

	// Disclaimer suppression: if every mention of a conflicts-band number
	// sits inside a "not providing advice under ... Section N" disclaimer,
	// drop that number entirely (spec §4.5.2).
	suppressed := map[int]bool{}
	for n, idxs := range conflictsIdx {
		allDisclaimed := true
		for _, idx := range idxs {
			window := text[max0(idx-80) : idx]
			if !disclaimerRe.MatchString(window) {
				allDisclaimed = false
				break
			}
		}
		if allDisclaimed {
			suppressed[n] = true
		}
	}

	set := map[string]bool{}
	for _, h := range hits {
		if suppressed[h.number] {
			continue
		}
		set[strconv.Itoa(h.number)] = true
	}
	return sortedKeys(set)
}

func extractRegulations(text string, bands Bands) []string {
	set := map[string]bool{}
	for _, m := range regulationRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n < bands.RegulationLow || n > bands.RegulationHigh {
			continue
		}
		set[strconv.Itoa(n)] = true
	}
	return sortedKeys(set)
}

// extractPriorOpinions matches the modern "X-YY-NNN" form, OCR-misread
// prefixes (4->A, 1->I), an older all-digit "YY" + letter + "NNN" form, and
// contextual "In re"/"Opinion"/"File No." forms, normalising every hit to
// canonical "X-YY-NNN" (spec §4.5.2).
func extractPriorOpinions(text string) []string {
	set := map[string]bool{}

	for _, m := range modernOpinionRe.FindAllStringSubmatch(text, -1) {
		set[canonicalOpinion(strings.ToUpper(m[1]), m[2], m[3])] = true
	}
	for _, m := range contextualOpinionRe.FindAllStringSubmatch(text, -1) {
		set[canonicalOpinion(strings.ToUpper(m[1]), m[2], m[3])] = true
	}
	for _, m := range misreadOpinionRe.FindAllStringSubmatch(text, -1) {
		prefix := m[1]
		switch prefix {
		case "4":
			prefix = "A"
		case "1":
			prefix = "I"
		}
		set[canonicalOpinion(prefix, m[2], m[3])] = true
	}
	for _, m := range oldDigitOpinionRe.FindAllStringSubmatch(text, -1) {
		set[canonicalOpinion(strings.ToUpper(m[2]), m[1], m[3])] = true
	}

	return sortedKeys(set)
}

func canonicalOpinion(prefix, yy, nnn string) string {
	return strings.ToUpper(prefix) + "-" + yy + "-" + nnn
}

// NormalizeLetterID canonicalises a raw letter identifier (as recovered by
// internal/titleparse or from a "File No." text match) into "X-YY-NNN"
// form, applying the same OCR-misread-prefix repair (4->A, 1->I) used for
// prior-opinion references. Returns the input uppercased, unchanged, if it
// does not match any recognised opinion-identifier shape.
func NormalizeLetterID(raw string) string {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if m := modernOpinionRe.FindStringSubmatch(raw); m != nil {
		return canonicalOpinion(m[1], m[2], m[3])
	}
	if m := oldDigitOpinionRe.FindStringSubmatch(raw); m != nil {
		return canonicalOpinion(m[2], m[1], m[3])
	}
	if m := misreadOpinionRe.FindStringSubmatch(raw); m != nil {
		prefix := m[1]
		switch prefix {
		case "4":
			prefix = "A"
		case "1":
			prefix = "I"
		}
		return canonicalOpinion(prefix, m[2], m[3])
	}
	return raw
}

func extractExternalRefs(text string) []string {
	set := map[string]bool{}
	for _, re := range reporterRe {
		for _, m := range re.FindAllString(text, -1) {
			set[normalizeSpacing(m)] = true
		}
	}
	return sortedKeys(set)
}

func normalizeSpacing(s string) string {
	s = spacingAroundParenRe.ReplaceAllString(s, " ($1)")
	return strings.Join(strings.Fields(s), " ")
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

var identifierVariantRe = regexp.MustCompile(`[^A-Za-z0-9]`)

// SelfCitationVariants generates every textual variant form a document's
// own letter identifier might appear in, per spec §4.5.3: case variants,
// dashed vs compact, with and without a leading-letter prefix, the old
// "83A195" compact style, and year+digits forms.
func SelfCitationVariants(letterID string) []string {
	if letterID == "" {
		return nil
	}
	set := map[string]bool{}
	id := strings.ToUpper(strings.TrimSpace(letterID))
	set[id] = true

	compact := identifierVariantRe.ReplaceAllString(id, "")
	set[compact] = true
	set[strings.ToLower(id)] = true
	set[strings.ToLower(compact)] = true

	// Canonical form is "X-YY-NNN"; derive the no-prefix and old
	// "YYXNNN" (e.g. "83A195") forms when it parses as such.
	if m := modernOpinionRe.FindStringSubmatch(id); m != nil {
		prefix, yy, nnn := m[1], m[2], m[3]
		set[yy+"-"+nnn] = true
		set[yy+nnn] = true
		set[yy+prefix+nnn] = true
		set[strings.ToLower(yy+prefix+nnn)] = true
	}

	out := make([]string, 0, len(set))
	for k := range set {
		if k != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// FilterSelfCitations drops any member of priorOpinions matching any
// variant of the document's own letter identifier (spec §4.5.3, P5/S4).
func FilterSelfCitations(priorOpinions []string, letterID string) []string {
	variants := SelfCitationVariants(letterID)
	if len(variants) == 0 {
		return priorOpinions
	}
	drop := map[string]bool{}
	for _, v := range variants {
		drop[strings.ToUpper(v)] = true
		drop[identifierVariantRe.ReplaceAllString(strings.ToUpper(v), "")] = true
	}

	var out []string
	for _, po := range priorOpinions {
		key := strings.ToUpper(po)
		compactKey := identifierVariantRe.ReplaceAllString(key, "")
		if drop[key] || drop[compactKey] {
			continue
		}
		out = append(out, po)
	}
	return out
}
