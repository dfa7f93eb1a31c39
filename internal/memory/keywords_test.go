package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywords(t *testing.T) {
	kws := ExtractKeywords("Qual é o prazo de prescrição para cobrança de honorários?")

	assert.Contains(t, kws, "prazo")
	assert.Contains(t, kws, "prescrição")
	assert.Contains(t, kws, "cobrança")
	assert.Contains(t, kws, "honorários")

	// Stopwords and short tokens drop out
	assert.NotContains(t, kws, "qual")
	assert.NotContains(t, kws, "para")
	assert.NotContains(t, kws, "de")
	assert.NotContains(t, kws, "é")
}

func TestExtractKeywordsEmpty(t *testing.T) {
	assert.Empty(t, ExtractKeywords(""))
	assert.Empty(t, ExtractKeywords("de o a para que"))
}

func TestJaccardSimilarity(t *testing.T) {
	a := []string{"prescrição", "intercorrente", "execução"}
	b := []string{"prescrição", "intercorrente", "fiscal"}

	// 2 shared of 4 total
	assert.InDelta(t, 0.5, JaccardSimilarity(a, b), 1e-9)
	assert.Equal(t, 1.0, JaccardSimilarity(a, a))
	assert.Equal(t, 0.0, JaccardSimilarity(a, []string{"trabalhista"}))
	assert.Equal(t, 0.0, JaccardSimilarity(nil, nil))
}

func TestQueryHashNormalization(t *testing.T) {
	h1 := QueryHash("  Prescrição   Intercorrente ")
	h2 := QueryHash("prescrição intercorrente")
	h3 := QueryHash("prescrição ordinária")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}
