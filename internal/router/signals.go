package router

import (
	"regexp"
	"strings"
)

// Signal patterns for Brazilian legal text. Legal-citation patterns catch
// statute and court references, relational patterns catch language about
// how authorities connect, argumentative patterns catch evidentiary
// framing.
var (
	legalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(art\.?|artigo)\s*\d+`),
		regexp.MustCompile(`(?i)\blei\s*(n[ºo°.]?\s*)?[\d./-]+`),
		regexp.MustCompile(`(?i)\b(stf|stj|tst|tse|stm|trf\d?|tjsp|tjrj|tjmg|trt\d{0,2})\b`),
		regexp.MustCompile(`(?i)\bs[úu]mula(\s+vinculante)?\s*(n[ºo°.]?\s*)?\d+`),
		regexp.MustCompile(`(?i)\btema\s*(n[ºo°.]?\s*)?\d+`),
		regexp.MustCompile(`(?i)\b(cf|cpc|cpp|clt|ctn|cdc|cc)\b[/\s]*(\d{2,4})?`),
		regexp.MustCompile(`(?i)\brecurso\s+(especial|extraordin[áa]rio)\b`),
		regexp.MustCompile(`(?i)\b(adi|adc|adpf|resp|re|hc|ms)\s*(n[ºo°.]?\s*)?\d+`),
		regexp.MustCompile(`(?i)\b(inciso|par[áa]grafo|§|caput|al[íi]nea)\b`),
	}

	relationalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(conex[ãa]o|conectad[oa]s?|relaç[ãa]o|relacionad[oa]s?)\b`),
		regexp.MustCompile(`(?i)\b(hierarquia|hier[áa]rquic[oa])\b`),
		regexp.MustCompile(`(?i)\b(precedentes?|jurisprud[êe]ncia)\b`),
		regexp.MustCompile(`(?i)\b(vincula(nte)?|vinculaç[ãa]o)\b`),
		regexp.MustCompile(`(?i)\b(deriva|decorre|depende)\b`),
		regexp.MustCompile(`(?i)\bse\s+aplica\b`),
	}

	argumentativePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(provas?|comprova(ç[ãa]o)?|demonstra(ç[ãa]o)?)\b`),
		regexp.MustCompile(`(?i)\b(contradi(z|ç[ãa]o)|contraria|refuta)\b`),
		regexp.MustCompile(`(?i)\b(argumentos?|argumenta(ç[ãa]o)?)\b`),
		regexp.MustCompile(`(?i)\b(evid[êe]ncias?)\b`),
		regexp.MustCompile(`(?i)\b(quando|quem|onde|por\s+qu[êe])\b`),
		regexp.MustCompile(`(?i)\b(teses?\s+de\s+defesa|alega(ç[ãa]o|ç[õo]es)?)\b`),
	}
)

// Signals are the tier-1 scores for one query.
type Signals struct {
	LegalScore float64 `json:"legal_score"`
	ArgScore   float64 `json:"arg_score"`
	Complexity float64 `json:"complexity"`
}

func countMatches(text string, patterns []*regexp.Regexp) int {
	n := 0
	for _, p := range patterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

// ScoreSignals runs the cheap regex tier over the query text.
func ScoreSignals(query string) Signals {
	legal := countMatches(query, legalPatterns)
	relational := countMatches(query, relationalPatterns)
	argumentative := countMatches(query, argumentativePatterns)

	s := Signals{
		LegalScore: clamp01(float64(legal)*0.34 + float64(relational)*0.17),
		ArgScore:   clamp01(float64(argumentative) * 0.34),
		Complexity: complexity(query),
	}
	return s
}

// complexity blends token count with clause structure. A long query with
// several clauses scores near 1, a two-word query near 0.
func complexity(query string) float64 {
	tokens := len(strings.Fields(query))
	clauses := strings.Count(query, ",") + strings.Count(query, ";") +
		strings.Count(query, "?") + strings.Count(query, ":")

	score := float64(tokens)/30.0 + float64(clauses)*0.1
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
