package sessions

import (
	"encoding/json"
	"testing"
)

func TestDecodeFindingsFlat(t *testing.T) {
	raw := json.RawMessage(`{"corticalThickness":"9.2mm","echogenicity":"Normal","cysts":"No cysts detected"}`)
	f := DecodeFindings(raw)
	if f.Kind != FindingsFlat {
		t.Fatalf("kind = %s", f.Kind)
	}
	if f.Flat["corticalThickness"] != "9.2mm" || len(f.Flat) != 3 {
		t.Fatalf("flat = %v", f.Flat)
	}
}

func TestDecodeFindingsStructured(t *testing.T) {
	raw := json.RawMessage(`{
		"summary":"Kidneys appear normal.",
		"keyFindings":["No cysts","Normal cortical thickness"],
		"prognosisAndImplications":"No follow-up required."
	}`)
	f := DecodeFindings(raw)
	if f.Kind != FindingsStructured {
		t.Fatalf("kind = %s", f.Kind)
	}
	if f.Structured.Summary != "Kidneys appear normal." || len(f.Structured.KeyFindings) != 2 {
		t.Fatalf("structured = %+v", f.Structured)
	}
}

func TestDecodeFindingsStructuredSnakeCase(t *testing.T) {
	raw := json.RawMessage(`{
		"summary":"Kidneys appear normal.",
		"key_findings":["No cysts","Normal cortical thickness"],
		"prognosis_and_implications":"No follow-up required."
	}`)
	f := DecodeFindings(raw)
	if f.Kind != FindingsStructured {
		t.Fatalf("kind = %s", f.Kind)
	}
	if len(f.Structured.KeyFindings) != 2 || f.Structured.PrognosisAndImplications != "No follow-up required." {
		t.Fatalf("structured = %+v", f.Structured)
	}
}

func TestDecodeFindingsStructuredMixedSpellings(t *testing.T) {
	raw := json.RawMessage(`{"keyFindings":["One"],"prognosis_and_implications":"Stable."}`)
	f := DecodeFindings(raw)
	if f.Kind != FindingsStructured {
		t.Fatalf("kind = %s", f.Kind)
	}
	if len(f.Structured.KeyFindings) != 1 || f.Structured.PrognosisAndImplications != "Stable." {
		t.Fatalf("structured = %+v", f.Structured)
	}
}

func TestDecodeFindingsPartialStructured(t *testing.T) {
	f := DecodeFindings(json.RawMessage(`{"summary":"Only a summary."}`))
	if f.Kind != FindingsStructured {
		t.Fatalf("kind = %s", f.Kind)
	}
	if f.Structured.Summary != "Only a summary." || f.Structured.KeyFindings != nil {
		t.Fatalf("structured = %+v", f.Structured)
	}
}

func TestDecodeFindingsFailsClosed(t *testing.T) {
	cases := []string{
		``,
		`null`,
		`{}`,
		`"just a string"`,
		`[1,2,3]`,
		`{"summary":"ok","rogueKey":"nope"}`,
		`{"summary":123}`,
		`{"key_findings":"not a list"}`,
		`{"label":{"nested":"object"}}`,
		`{"count":42}`,
		`not json at all`,
	}
	for _, raw := range cases {
		if f := DecodeFindings(json.RawMessage(raw)); f.Kind != FindingsUnavailable {
			t.Fatalf("%q: kind = %s, want unavailable", raw, f.Kind)
		}
	}
}
