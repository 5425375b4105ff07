package fidelity

// SequenceRatio computes a Ratcliff/Obershelp matching-blocks similarity
// ratio over two token sequences, returning 2*M/T where M is the total
// length of the longest matching blocks found by recursive longest-match
// search and T is the combined length of both sequences. This is a direct
// port of Python's difflib.SequenceMatcher(None, a, b).ratio(), including
// its autojunk heuristic (sequences of 200+ tokens drop any token that
// recurs more than 1% of the time from consideration, since such tokens
// dominate the match search without carrying comparison signal).
//
// Grounded on original_source/scripts/run_tesseract_canary.py's
// compare_texts, which feeds word-tokenized, normalized OCR text through
// exactly this function to produce the canary score that drives risk-tier
// classification.
func SequenceRatio(a, b []string) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	b2j := buildB2J(b)
	matches := countMatches(a, b, b2j)
	return 2.0 * float64(matches) / float64(total)
}

// buildB2J indexes each token in b to the list of positions it occurs at,
// then drops "popular" tokens per difflib's autojunk rule: when b has at
// least 200 tokens, any token occurring more than len(b)/100+1 times is
// excluded from the index entirely.
func buildB2J(b []string) map[string][]int {
	b2j := make(map[string][]int)
	for i, tok := range b {
		b2j[tok] = append(b2j[tok], i)
	}

	if len(b) >= 200 {
		threshold := len(b)/100 + 1
		for tok, idxs := range b2j {
			if len(idxs) > threshold {
				delete(b2j, tok)
			}
		}
	}
	return b2j
}

type span struct {
	alo, ahi, blo, bhi int
}

// countMatches sums the lengths of all matching blocks found by
// recursively bisecting the (a, b) index ranges around each longest match,
// mirroring difflib's get_matching_blocks. The sum of block lengths is
// invariant under the adjacent-block merge difflib performs afterward, so
// merging is skipped here; only the ratio's numerator is needed.
func countMatches(a, b []string, b2j map[string][]int) int {
	matches := 0
	stack := []span{{0, len(a), 0, len(b)}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		i, j, k := findLongestMatch(a, b2j, s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		matches += k
		if s.alo < i && s.blo < j {
			stack = append(stack, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			stack = append(stack, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return matches
}

// findLongestMatch finds the longest run of tokens common to a[alo:ahi]
// and b[blo:bhi], preferring the match starting earliest in a and, among
// those, earliest in b (difflib's tie-break), via the standard
// dynamic-programming sweep over b2j position lists.
func findLongestMatch(a []string, b2j map[string][]int, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj, bestsize = alo, blo, 0
	j2len := make(map[int]int)

	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}
	return besti, bestj, bestsize
}
