package queue

import (
	"reflect"
	"strings"
	"testing"
)

func TestMessageRoundTrip(t *testing.T) {
	msg := Message{
		SessionID:  "session-123",
		ReportText: "Kidney ultrasound report",
		RequestID:  "request-456",
		EnqueuedAt: "2026-01-30T22:00:00Z",
		Version:    1,
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}

	got, err := DecodeMessage(payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}

	if !reflect.DeepEqual(got, msg) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, msg)
	}
}

func TestMessageOmitsEmptyReportText(t *testing.T) {
	payload, err := EncodeMessage(Message{SessionID: "s1", Version: 1})
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	if strings.Contains(string(payload), "reportText") {
		t.Fatalf("empty reportText serialized: %s", payload)
	}
}
