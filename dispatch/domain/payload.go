package domain

import "encoding/json"

// Payload é o corpo repassado ao upstream. Contents é opaco: o despacho não
// valida a forma das mensagens.
type Payload struct {
	Contents json.RawMessage
}

// Turn e Part descrevem a forma esperada de cada item de contents.
// Só são decodificados quando o upstream precisa do formato legado (prompt).
type Turn struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}
