// Package scoring computes compatibility scores between two profiles from
// trait-set overlap and bio keyword overlap. It is pure: no I/O, no state.
package scoring

import (
	"math"
	"sort"
	"strings"
)

const (
	traitWeight = 0.6
	bioWeight   = 0.4

	// Tokens this short carry no signal.
	minKeywordLen = 4
)

// stopWords are dropped from bio keyword sets.
var stopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "been": {},
	"like": {}, "love": {}, "about": {}, "into": {}, "over": {}, "really": {},
	"just": {}, "very": {}, "when": {}, "what": {}, "where": {}, "also": {},
	"them": {}, "they": {}, "their": {}, "будь": {}, "дуже": {}, "який": {},
	"яка": {}, "себе": {}, "мене": {}, "тебе": {},
}

// Result is the scorer output: the overall score plus supporting evidence.
type Result struct {
	Score           float64  `json:"score"`
	TraitSimilarity float64  `json:"trait_similarity"`
	BioSimilarity   float64  `json:"bio_similarity"`
	SharedTraits    []string `json:"shared_traits"`
	SharedKeywords  []string `json:"shared_keywords"`
}

// Score computes the compatibility of two profiles. Порожні вхідні дані
// дають нуль, а не помилку.
func Score(traitsA, traitsB []string, bioA, bioB string) Result {
	setA := toSet(normalizeTraits(traitsA))
	setB := toSet(normalizeTraits(traitsB))
	traitSim, sharedTraits := jaccard(setA, setB)

	var bioSim float64
	var sharedKeywords []string
	if bioA != "" && bioB != "" {
		kwA := toSet(Keywords(bioA))
		kwB := toSet(Keywords(bioB))
		bioSim, sharedKeywords = jaccard(kwA, kwB)
	}

	overall := traitWeight*traitSim + bioWeight*bioSim

	return Result{
		Score:           round3(overall),
		TraitSimilarity: round3(traitSim),
		BioSimilarity:   round3(bioSim),
		SharedTraits:    sharedTraits,
		SharedKeywords:  sharedKeywords,
	}
}

// Keywords extracts the keyword set from a bio: lowercase, punctuation
// stripped, whitespace-split, short tokens and stop words dropped.
func Keywords(bio string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if isPunct(r) {
			return ' '
		}
		return r
	}, strings.ToLower(bio))

	seen := make(map[string]struct{})
	var out []string
	for _, tok := range strings.Fields(cleaned) {
		if len([]rune(tok)) < minKeywordLen {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// jaccard returns |A∩B| / |A∪B| and the sorted intersection.
// Дві порожні множини дають 0.
func jaccard(a, b map[string]struct{}) (float64, []string) {
	if len(a) == 0 && len(b) == 0 {
		return 0, nil
	}

	var shared []string
	for k := range a {
		if _, ok := b[k]; ok {
			shared = append(shared, k)
		}
	}
	sort.Strings(shared)

	union := len(a) + len(b) - len(shared)
	if union == 0 {
		return 0, nil
	}
	return float64(len(shared)) / float64(union), shared
}

func normalizeTraits(traits []string) []string {
	out := make([]string, 0, len(traits))
	for _, t := range traits {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

func isPunct(r rune) bool {
	return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') &&
		!(r >= 'а' && r <= 'я') && r != 'і' && r != 'ї' && r != 'є' && r != 'ґ' &&
		r != ' ' && r != '\t' && r != '\n' && r != '\r'
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
