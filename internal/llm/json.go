package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls the first JSON object out of a model completion.
// Models often wrap the object in prose or markdown fences, so we take
// the slice between the first '{' and the last '}' and attempt a parse.
func ExtractJSON(text string, out interface{}) error {
	s := strings.TrimSpace(text)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return &ProviderError{Message: "no json object in completion"}
	}
	return json.Unmarshal([]byte(s[start:end+1]), out)
}
