package normalize

import "strings"

// Candidate is a known school in normalized form.
type Candidate struct {
	ID   string
	Name string
	Norm string
}

// Match resolves a free-text school name against a catalog restricted to
// one country. Rules fire in priority order: exact normalized equality,
// substring containment either way, then token overlap (words longer than
// two characters, overlap of at least two, overlap ratio above one half,
// highest overlap wins with ties broken by catalog order). A greedy
// single-pass heuristic: deterministic for a fixed input and catalog, not
// globally optimal.
func Match(name string, catalog []Candidate) *Candidate {
	if len(catalog) == 0 {
		return nil
	}
	norm := Name(name)
	if norm == "" {
		return nil
	}

	for i := range catalog {
		if catalog[i].Norm == norm {
			return &catalog[i]
		}
	}

	for i := range catalog {
		if strings.Contains(norm, catalog[i].Norm) || strings.Contains(catalog[i].Norm, norm) {
			return &catalog[i]
		}
	}

	words := significantWords(norm)
	var best *Candidate
	bestOverlap := 0
	for i := range catalog {
		knownWords := significantWords(catalog[i].Norm)
		overlap := overlapCount(words, knownWords)
		longest := len(words)
		if len(knownWords) > longest {
			longest = len(knownWords)
		}
		if longest == 0 {
			continue
		}
		ratio := float64(overlap) / float64(longest)
		if overlap >= 2 && ratio > 0.5 && overlap > bestOverlap {
			bestOverlap = overlap
			best = &catalog[i]
		}
	}
	return best
}

func significantWords(norm string) []string {
	fields := strings.Fields(norm)
	words := fields[:0]
	for _, w := range fields {
		if len(w) > 2 {
			words = append(words, w)
		}
	}
	return words
}

func overlapCount(a, b []string) int {
	set := make(map[string]struct{}, len(b))
	for _, w := range b {
		set[w] = struct{}{}
	}
	count := 0
	for _, w := range a {
		if _, ok := set[w]; ok {
			count++
		}
	}
	return count
}
