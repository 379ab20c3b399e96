package sessions

import (
	"bytes"
	"encoding/json"
)

// Findings kinds. Unknown payload shapes fail closed to Unavailable
// rather than rendering half-parsed medical content.
const (
	FindingsUnavailable = "unavailable"
	FindingsFlat        = "flat"
	FindingsStructured  = "structured"
)

// StructuredFindings is the narrative findings shape newer model
// prompts return.
type StructuredFindings struct {
	Summary                  string   `json:"summary"`
	KeyFindings              []string `json:"keyFindings"`
	PrognosisAndImplications string   `json:"prognosisAndImplications"`
}

// Findings is the decoded view over a raw findings payload.
type Findings struct {
	Kind       string
	Flat       map[string]string
	Structured *StructuredFindings
}

// structuredKeys maps accepted spellings (camelCase and snake_case
// payloads both occur in stored rows) to the canonical field.
var structuredKeys = map[string]string{
	"summary":                    "summary",
	"keyFindings":                "keyFindings",
	"key_findings":               "keyFindings",
	"prognosisAndImplications":   "prognosisAndImplications",
	"prognosis_and_implications": "prognosisAndImplications",
}

// DecodeFindings interprets a stored findings payload. Two shapes are
// recognized: a flat string map (label -> observation) and the
// structured narrative object. Anything else, including partially
// matching objects, yields Unavailable.
func DecodeFindings(raw json.RawMessage) Findings {
	unavailable := Findings{Kind: FindingsUnavailable}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return unavailable
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil || len(fields) == 0 {
		return unavailable
	}

	if isStructuredShape(fields) {
		st := &StructuredFindings{}
		for k, v := range fields {
			var err error
			switch structuredKeys[k] {
			case "summary":
				err = json.Unmarshal(v, &st.Summary)
			case "keyFindings":
				err = json.Unmarshal(v, &st.KeyFindings)
			case "prognosisAndImplications":
				err = json.Unmarshal(v, &st.PrognosisAndImplications)
			}
			if err != nil {
				return unavailable
			}
		}
		return Findings{Kind: FindingsStructured, Structured: st}
	}

	flat := make(map[string]string, len(fields))
	for k, v := range fields {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return unavailable
		}
		flat[k] = s
	}
	return Findings{Kind: FindingsFlat, Flat: flat}
}

// isStructuredShape requires every key to be a known structured field
// and at least one to be present. An object mixing structured and
// arbitrary keys is not trusted.
func isStructuredShape(fields map[string]json.RawMessage) bool {
	matched := false
	for k := range fields {
		if structuredKeys[k] == "" {
			return false
		}
		matched = true
	}
	return matched
}
