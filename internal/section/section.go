// Package section implements the Section Parser (C5.1): it scans a
// Document's text for Question, Conclusion, Facts, and Analysis sections
// across three format eras plus an OCR-tolerant fallback family, and
// scores its own confidence. Grounded on scraper/section_parser.py's
// docstring (original_source/, truncated by retrieval but explicit about
// the section set and era families) and spec §4.5.1.
package section

import (
	"regexp"
	"sort"
	"strings"
)

// Name identifies one of the four section types.
type Name int

const (
	Question Name = iota
	Conclusion
	Facts
	Analysis
)

var names = map[Name]string{
	Question:   "question",
	Conclusion: "conclusion",
	Facts:      "facts",
	Analysis:   "analysis",
}

// Sections is the Section Parser's output, matching the "sections"
// sub-object of the Structured Record described in spec §3.
type Sections struct {
	Question             string
	Conclusion            string
	Facts                 string
	Analysis              string
	ParseMethod           string
	Confidence            float64
	HasStandardFormat     bool
	Notes                 []string
}

type headerPattern struct {
	re  *regexp.Regexp
	era string // "modern", "numbered", "older", "ocr-tolerant"
}

// Header pattern families, tried in order per section. OCR-tolerant
// patterns are consulted only when every strict pattern misses, per spec
// §4.5.1 ("activates only if the strict patterns miss").
var headerFamilies = map[Name][]headerPattern{
	Question: {
		{regexp.MustCompile(`(?im)^\s*QUESTION\s*:?\s*$`), "modern"},
		{regexp.MustCompile(`(?im)^\s*QUESTIONS?\s+PRESENTED\s*:?\s*$`), "older"},
		{regexp.MustCompile(`(?im)^\s*I\.\s+QUESTION\s*:?\s*$`), "numbered"},
		{regexp.MustCompile(`(?im)^\s*[QO0]UEST[l1I]ON[S5]?\s*(PRE[S5]ENTED)?\s*:?\s*$`), "ocr-tolerant"},
	},
	Conclusion: {
		{regexp.MustCompile(`(?im)^\s*CONCLUSION\s*:?\s*$`), "modern"},
		{regexp.MustCompile(`(?im)^\s*SHORT\s+ANSWER\s*:?\s*$`), "older"},
		{regexp.MustCompile(`(?im)^\s*II\.\s+CONCLUSION\s*:?\s*$`), "numbered"},
		{regexp.MustCompile(`(?im)^\s*C0NCLU[S5]ION\s*:?\s*$`), "ocr-tolerant"},
	},
	Facts: {
		{regexp.MustCompile(`(?im)^\s*FACTS\s*:?\s*$`), "modern"},
		{regexp.MustCompile(`(?im)^\s*BACKGROUND\s*:?\s*$`), "older"},
		{regexp.MustCompile(`(?im)^\s*III\.\s+FACTS\s*:?\s*$`), "numbered"},
		{regexp.MustCompile(`(?im)^\s*FACT[S5]\s*:?\s*$`), "ocr-tolerant"},
	},
	Analysis: {
		{regexp.MustCompile(`(?im)^\s*ANALYSIS\s*:?\s*$`), "modern"},
		{regexp.MustCompile(`(?im)^\s*DISCUSSION\s*:?\s*$`), "older"},
		{regexp.MustCompile(`(?im)^\s*IV\.\s+ANALYSIS\s*:?\s*$`), "numbered"},
		{regexp.MustCompile(`(?im)^\s*ANALY[S5][l1I]S\s*:?\s*$`), "ocr-tolerant"},
	},
}

// Document-end markers are searched starting at or after each section's
// header, so a quoted "Sincerely," embedded within the Facts section does
// not truncate it (B4).
var endMarkerRe = regexp.MustCompile(`(?im)^\s*(very\s+truly\s+yours|sincerely|respectfully\s+submitted)\s*,?\s*$`)

// Boilerplate removed from section content, with OCR-tolerant variants.
var boilerplateRes = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^\s*Fair Political Practices Commission\s*$`),
	regexp.MustCompile(`(?im)^\s*F[ai1][il1]r P[o0]l[il1]t[il1]cal Pract[il1]ces C[o0]mm[il1]ss[il1]on\s*$`),
	regexp.MustCompile(`(?im)^\s*Page\s+\d+(\s+of\s+\d+)?\s*$`),
	regexp.MustCompile(`(?im)^\s*-\s*\d+\s*-\s*$`),
	regexp.MustCompile(`(?im)^\s*\d+\s+[A-Za-z\s]+(Street|Ave|Avenue|Blvd|Boulevard),?.*(Sacramento|CA|California).*$`),
	regexp.MustCompile(`(?im)^\s*See\s+Government\s+Code\s+Section\s+\d+\.?\s*$`),
}

type match struct {
	name Name
	pos  int // byte offset of the start of the header line
	end  int // byte offset of the end of the header line
	era  string
}

// Parse scans text for every section header, derives each section's span,
// cleans its content, and scores confidence. minWords is a configurable
// threshold (spec §9 Open Question 3, defaulting to 1): sections shorter
// than this are dropped with a note rather than rejecting the document.
func Parse(text string, minWords int) Sections {
	var matches []match
	for _, n := range []Name{Question, Conclusion, Facts, Analysis} {
		for _, hp := range headerFamilies[n] {
			if hp.era == "ocr-tolerant" {
				continue // only consulted below, if the strict families missed
			}
			if loc := hp.re.FindStringIndex(text); loc != nil {
				matches = append(matches, match{name: n, pos: loc[0], end: loc[1], era: hp.era})
				break
			}
		}
	}

	found := map[Name]bool{}
	for _, m := range matches {
		found[m.name] = true
	}
	for _, n := range []Name{Question, Conclusion, Facts, Analysis} {
		if found[n] {
			continue
		}
		for _, hp := range headerFamilies[n] {
			if hp.era != "ocr-tolerant" {
				continue
			}
			if loc := hp.re.FindStringIndex(text); loc != nil {
				matches = append(matches, match{name: n, pos: loc[0], end: loc[1], era: hp.era})
				found[n] = true
				break
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].pos < matches[j].pos })

	s := Sections{ParseMethod: "header-pattern"}
	content := map[Name]string{}
	var notes []string
	var elderCount, modernCount int

	for i, m := range matches {
		spanEnd := len(text)
		if i+1 < len(matches) {
			spanEnd = matches[i+1].pos
		}
		if loc := endMarkerRe.FindStringIndex(text[m.end:]); loc != nil {
			candidate := m.end + loc[0]
			if candidate < spanEnd {
				spanEnd = candidate
			}
		}

		raw := text[m.end:spanEnd]
		cleaned := clean(raw)

		wc := len(strings.Fields(cleaned))
		if wc < minWords {
			notes = append(notes, names[m.name]+" section below minimum word threshold, dropped")
			continue
		}
		content[m.name] = cleaned

		switch m.era {
		case "older", "ocr-tolerant":
			elderCount++
		case "modern", "numbered":
			modernCount++
		}
	}

	s.Question = content[Question]
	s.Conclusion = content[Conclusion]
	s.Facts = content[Facts]
	s.Analysis = content[Analysis]

	if s.Question != "" && s.Conclusion != "" {
		qPos, cPos := -1, -1
		for _, m := range matches {
			if m.name == Question && qPos == -1 {
				qPos = m.pos
			}
			if m.name == Conclusion && cPos == -1 {
				cPos = m.pos
			}
		}
		if qPos != -1 && cPos != -1 && cPos < qPos {
			notes = append(notes, "conclusion precedes question in document order")
		}
	}

	s.Confidence = confidence(s, modernCount, elderCount, len(notes))
	s.HasStandardFormat = s.Question != "" && s.Conclusion != ""
	s.Notes = notes
	return s
}

func clean(raw string) string {
	lines := strings.Split(raw, "\n")
	var kept []string
	for _, line := range lines {
		stripped := false
		for _, re := range boilerplateRes {
			if re.MatchString(line) {
				stripped = true
				break
			}
		}
		if !stripped {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func confidence(s Sections, modernCount, elderCount, issueCount int) float64 {
	var base float64
	switch {
	case s.Question != "" && s.Conclusion != "":
		base = 0.9
	case s.Question != "" || s.Conclusion != "":
		base = 0.6
	case s.Analysis != "" || s.Facts != "":
		base = 0.4
	default:
		base = 0
	}

	if base == 0 {
		return 0
	}

	era := 0.0
	if modernCount > elderCount {
		era = 0.05
	} else if elderCount > modernCount {
		era = -0.05
	}

	score := base + era - 0.02*float64(issueCount)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}
