package dispatch

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

type normalizedPart struct {
	Text string `json:"text"`
}

type normalizedContent struct {
	Parts []normalizedPart `json:"parts"`
}

type normalizedCandidate struct {
	Content normalizedContent `json:"content"`
}

type normalized struct {
	Candidates []normalizedCandidate `json:"candidates"`
	Raw        json.RawMessage       `json:"raw"`
}

// Normalize junta os textos de candidates[0].content.parts[] em uma única part
// e mantém o payload original em "raw". Sem texto, a part sai vazia.
func Normalize(body []byte) []byte {
	var texts []string
	for _, t := range gjson.GetBytes(body, "candidates.0.content.parts.#.text").Array() {
		texts = append(texts, t.String())
	}

	raw := json.RawMessage(body)
	if !gjson.ValidBytes(body) {
		raw = json.RawMessage("null")
	}

	out, err := json.Marshal(normalized{
		Candidates: []normalizedCandidate{{Content: normalizedContent{Parts: []normalizedPart{{Text: strings.Join(texts, "")}}}}},
		Raw:        raw,
	})
	if err != nil {
		return body
	}
	return out
}
