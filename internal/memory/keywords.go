package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

var nonWordPattern = regexp.MustCompile(`[\p{P}\p{S}]+`)

// Portuguese function words that carry no retrieval signal.
var stopwords = map[string]bool{
	"com": true, "como": true, "das": true, "dos": true, "ela": true,
	"ele": true, "elas": true, "eles": true, "entre": true, "essa": true,
	"esse": true, "esta": true, "este": true, "foi": true, "for": true,
	"mais": true, "mas": true, "nao": true, "não": true, "nas": true,
	"nos": true, "para": true, "pela": true, "pelo": true, "por": true,
	"qual": true, "quais": true, "quando": true, "que": true, "quem": true,
	"ser": true, "sem": true, "seu": true, "sua": true, "sobre": true,
	"será": true, "tem": true, "uma": true, "the": true, "and": true,
	"what": true, "which": true, "with": true, "about": true, "from": true,
}

// ExtractKeywords returns the stopword-filtered token set of a query.
// Tokens shorter than three runes are dropped. The result is sorted so
// hashes and comparisons are stable.
func ExtractKeywords(text string) []string {
	lower := strings.ToLower(text)
	clean := nonWordPattern.ReplaceAllString(lower, " ")

	seen := make(map[string]bool)
	for _, tok := range strings.Fields(clean) {
		if len([]rune(tok)) < 3 || stopwords[tok] {
			continue
		}
		seen[tok] = true
	}

	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// JaccardSimilarity computes |a∩b| / |a∪b| over two keyword sets.
func JaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[t] = true
	}
	intersection := 0
	union := len(setA)
	seenB := make(map[string]bool, len(b))
	for _, t := range b {
		if seenB[t] {
			continue
		}
		seenB[t] = true
		if setA[t] {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// QueryHash derives the stable key for a query from its normalized text.
func QueryHash(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(query))), " ")
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}
