package infra

import (
	"encoding/json"
	"fmt"
	"strings"

	"genai-gateway/dispatch/domain"
)

// PayloadMode escolhe o formato do corpo enviado ao upstream.
type PayloadMode string

const (
	// ModeContents envia {"contents": ...} como recebido.
	ModeContents PayloadMode = "contents"
	// ModePrompt é o formato legado {"prompt":{"text": ...}}.
	ModePrompt PayloadMode = "prompt"
)

func ParsePayloadMode(s string) (PayloadMode, error) {
	switch PayloadMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeContents:
		return ModeContents, nil
	case ModePrompt:
		return ModePrompt, nil
	default:
		return "", fmt.Errorf("unknown payload mode %q", s)
	}
}

type contentsBody struct {
	Contents json.RawMessage `json:"contents"`
}

type promptBody struct {
	Prompt struct {
		Text string `json:"text"`
	} `json:"prompt"`
}

func buildBody(mode PayloadMode, p domain.Payload) ([]byte, error) {
	if mode != ModePrompt {
		return json.Marshal(contentsBody{Contents: p.Contents})
	}

	text, err := flattenTurns(p.Contents)
	if err != nil {
		return nil, err
	}
	var body promptBody
	body.Prompt.Text = text
	return json.Marshal(body)
}

// flattenTurns vira "ROLE: texto" por turno, separados por linha em branco.
func flattenTurns(contents json.RawMessage) (string, error) {
	var turns []domain.Turn
	if err := json.Unmarshal(contents, &turns); err != nil {
		return "", fmt.Errorf("contents is not a list of turns: %w", err)
	}

	blocks := make([]string, 0, len(turns))
	for _, t := range turns {
		texts := make([]string, 0, len(t.Parts))
		for _, p := range t.Parts {
			texts = append(texts, p.Text)
		}
		blocks = append(blocks, strings.ToUpper(t.Role)+": "+strings.Join(texts, "\n"))
	}
	return strings.Join(blocks, "\n\n"), nil
}
