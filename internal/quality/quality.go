// Package quality implements the Quality Scorer (C3): a pure,
// side-effect-free function of (text, page count) returning a QualityMetrics
// value in [0,1] with its five weighted component sub-scores. Grounded on
// scraper/quality.py's docstring and weight table (original_source/,
// truncated by retrieval but explicit about weights/purpose) and spec
// §4.3/§9 Open Question 2, which freezes these weights as contractual.
package quality

import (
	_ "embed"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// Component weights are frozen per spec §9 Open Question 2; no source run
// documents a tuning regime, so these are never loaded from config.
const (
	weightDensity           = 0.15
	weightCharacterQuality  = 0.15
	weightWordStructural    = 0.15
	weightDictionaryHit     = 0.40
	weightContentPattern    = 0.15

	densityGateThreshold = 0.20
)

// Metrics is the Quality Scorer's output: a final score plus its component
// sub-scores and diagnostic flags, per spec §4.3.
type Metrics struct {
	Score             float64
	Density           float64
	CharacterQuality  float64
	WordStructural    float64
	DictionaryHit     float64
	ContentPattern    float64
	WordsPerPage      float64
	GarbageTokenCount int
	Flags             []string
}

// Score computes a document's quality metrics. It is a pure function:
// repeated calls on the same (text, pageCount) return identical values
// (P7), since it touches no mutable state beyond the one-shot dictionary
// singleton, which is read-only after initialisation (spec §9).
func Score(text string, pageCount int) Metrics {
	tokens := tokenize(text)
	wpp := wordsPerPage(len(tokens), pageCount)

	m := Metrics{WordsPerPage: wpp}
	m.Density = densityScore(wpp)
	m.CharacterQuality = characterQualityScore(text)
	m.WordStructural, m.GarbageTokenCount = wordStructuralScore(tokens)
	m.DictionaryHit = dictionaryHitScore(tokens)
	m.ContentPattern = contentPatternScore(text)

	final := weightDensity*m.Density +
		weightCharacterQuality*m.CharacterQuality +
		weightWordStructural*m.WordStructural +
		weightDictionaryHit*m.DictionaryHit +
		weightContentPattern*m.ContentPattern

	if m.Density < densityGateThreshold {
		final = final * (m.Density / densityGateThreshold)
		m.Flags = append(m.Flags, "density-gated")
	}
	if final < 0 {
		final = 0
	}
	if final > 1 {
		final = 1
	}
	m.Score = final
	return m
}

// Decision holds the thresholds needed to evaluate ShouldUseOCR without
// importing the config package, keeping this package dependency-free.
type Decision struct {
	LegacyYearCutoff int
	ScoreThreshold   float64
	MinWordsPerPage  float64
	MinAlphaRatio    float64
	MaxGarbageTokens int
}

// ShouldUseOCR implements the OCR-fallback decision of spec §4.3: true
// when the year predates the legacy cutoff, or the final score is below
// threshold, or words-per-page is too low, or alpha ratio is too low, or
// garbage-token count is above threshold.
func ShouldUseOCR(d Decision, year int, m Metrics) bool {
	if year < d.LegacyYearCutoff {
		return true
	}
	if m.Score < d.ScoreThreshold {
		return true
	}
	if m.WordsPerPage < d.MinWordsPerPage {
		return true
	}
	if m.CharacterQuality < d.MinAlphaRatio {
		return true
	}
	if m.GarbageTokenCount > d.MaxGarbageTokens {
		return true
	}
	return false
}

var tokenRe = regexp.MustCompile(`[A-Za-z0-9'-]+`)

func tokenize(text string) []string {
	return tokenRe.FindAllString(text, -1)
}

func wordsPerPage(wordCount, pageCount int) float64 {
	if pageCount <= 0 {
		pageCount = 1
	}
	return float64(wordCount) / float64(pageCount)
}

// densityScore is piecewise-linear, peaking at 1.0 in the ~200-600
// words-per-page band typical of an advice letter, falling to 0 below
// roughly an extraction-failure floor and above an overly-dense ceiling.
func densityScore(wpp float64) float64 {
	const (
		floor    = 20
		bandLow  = 200
		bandHigh = 600
		ceiling  = 1400
	)
	switch {
	case wpp <= floor:
		return 0
	case wpp < bandLow:
		return (wpp - floor) / (bandLow - floor)
	case wpp <= bandHigh:
		return 1.0
	case wpp < ceiling:
		return 1.0 - (wpp-bandHigh)/(ceiling-bandHigh)
	default:
		return 0
	}
}

// characterQualityScore is the ratio of alphabetic characters to printable
// non-whitespace characters, piecewise-linear between a noise floor and a
// clean-text ceiling.
func characterQualityScore(text string) float64 {
	var alpha, printable int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		if !unicode.IsPrint(r) {
			continue
		}
		printable++
		if unicode.IsLetter(r) {
			alpha++
		}
	}
	if printable == 0 {
		return 0
	}
	ratio := float64(alpha) / float64(printable)
	return linearRatioScore(ratio, 0.50, 0.95)
}

func linearRatioScore(ratio, floor, ceiling float64) float64 {
	switch {
	case ratio <= floor:
		return 0
	case ratio >= ceiling:
		return 1
	default:
		return (ratio - floor) / (ceiling - floor)
	}
}

var vowelRe = regexp.MustCompile(`(?i)[aeiou]`)
var repeatRunRe = regexp.MustCompile(`(.)\1{3,}`)
var consonantRunRe = regexp.MustCompile(`(?i)[^aeiou\d\s'-]{5,}`)

// wordStructuralScore is the fraction of tokens surviving a battery of
// structural checks: Latin-script only, not an excessively long non-URL
// token, at least one vowel in tokens of length >= 3, no run of 4+
// identical characters, no run of 5+ consonants.
func wordStructuralScore(tokens []string) (score float64, garbageCount int) {
	if len(tokens) == 0 {
		return 0, 0
	}
	var ok int
	for _, t := range tokens {
		if isWellFormedToken(t) {
			ok++
		} else {
			garbageCount++
		}
	}
	return float64(ok) / float64(len(tokens)), garbageCount
}

func isWellFormedToken(t string) bool {
	for _, r := range t {
		if r > unicode.MaxASCII && !unicode.Is(unicode.Latin, r) {
			return false
		}
	}
	if len(t) > 30 && !looksLikeURL(t) {
		return false
	}
	if len(t) >= 3 && !vowelRe.MatchString(t) {
		return false
	}
	if repeatRunRe.MatchString(t) {
		return false
	}
	if consonantRunRe.MatchString(t) {
		return false
	}
	return true
}

func looksLikeURL(t string) bool {
	lower := strings.ToLower(t)
	return strings.Contains(lower, "http") || strings.Contains(lower, "www") || strings.Contains(lower, ".gov") || strings.Contains(lower, ".com")
}

// dictionaryHitScore samples an evenly-spaced subset of up to ~200 tokens
// (excluding pure-numeric and very short tokens) and scores the fraction
// found in the bundled English word list, piecewise-linear calibrated so
// that a 10-15% miss rate reads as "good" (spec §4.3).
func dictionaryHitScore(tokens []string) float64 {
	sample := sampleTokens(tokens, 200)
	if len(sample) == 0 {
		return 0
	}

	dict := loadDictionary()
	var hits int
	for _, t := range sample {
		if dict[strings.ToLower(t)] {
			hits++
		}
	}
	ratio := float64(hits) / float64(len(sample))
	return linearRatioScore(ratio, 0.40, 0.88)
}

func sampleTokens(tokens []string, maxSample int) []string {
	var candidates []string
	for _, t := range tokens {
		if len(t) < 3 {
			continue
		}
		if _, err := strconv.ParseFloat(t, 64); err == nil {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) <= maxSample {
		return candidates
	}

	stride := float64(len(candidates)) / float64(maxSample)
	out := make([]string, 0, maxSample)
	for i := 0; i < maxSample; i++ {
		idx := int(float64(i) * stride)
		out = append(out, candidates[idx])
	}
	return out
}

var (
	datePatternRe   = regexp.MustCompile(`\b(19|20)\d{2}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	agencySelfRe    = regexp.MustCompile(`(?i)fair political practices commission|\bFPPC\b`)
	sectionHeaderRe = regexp.MustCompile(`(?im)^\s*(question(s)?( presented)?|conclusion|facts|analysis|discussion|background|short answer)\b`)
)

// contentPatternScore counts three independent document-genre markers —
// a date pattern, an agency self-mention, and at least two canonical
// section headers — each worth 0.33.
func contentPatternScore(text string) float64 {
	var score float64
	if datePatternRe.MatchString(text) {
		score += 0.33
	}
	if agencySelfRe.MatchString(text) {
		score += 0.33
	}
	if len(sectionHeaderRe.FindAllString(text, -1)) >= 2 {
		score += 0.33
	}
	if score > 1 {
		score = 1
	}
	return score
}

//go:embed wordlist.txt
var wordlistRaw string

var (
	dictOnce sync.Once
	dict     map[string]bool
)

// loadDictionary initialises the bundled word list exactly once; the
// resulting map is never mutated afterward, so it is safe to share across
// goroutines without locking (spec §9's "module-level globals" note).
func loadDictionary() map[string]bool {
	dictOnce.Do(func() {
		lines := strings.Split(wordlistRaw, "\n")
		dict = make(map[string]bool, len(lines))
		for _, line := range lines {
			w := strings.ToLower(strings.TrimSpace(line))
			if w != "" {
				dict[w] = true
			}
		}
	})
	return dict
}
