package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
)

var healthRecommendations = []string{
	"• Stay well-hydrated by drinking 8-10 glasses of water daily",
	"• Follow a kidney-friendly diet low in sodium and phosphorus",
	"• Monitor blood pressure regularly and maintain healthy levels",
	"• Engage in regular moderate exercise as approved by your physician",
	"• Avoid NSAIDs and other medications that may harm kidney function",
	"• Schedule regular follow-up appointments with your nephrologist",
	"• Consider dietary consultation for personalized nutrition planning",
	"• Monitor protein intake according to your doctor's recommendations",
}

// StubClient produces synthetic diagnoses for local development when no
// gateway is configured.
type StubClient struct{}

// Diagnose returns a randomized but schema-valid diagnosis payload.
func (StubClient) Diagnose(ctx context.Context, input DiagnoseInput) (json.RawMessage, error) {
	_ = ctx
	diagnosis := "Normal Kidney Function"
	if rand.Float64() > 0.7 {
		diagnosis = "Chronic Kidney Disease Stage 3"
	}
	payload := map[string]any{
		"diagnosis":  diagnosis,
		"confidence": rand.Float64()*0.3 + 0.7,
		"findings": map[string]any{
			"corticalThickness": fmt.Sprintf("%.1fmm", rand.Float64()*3+8),
			"echogenicity":      pick("Normal", "Increased", 0.5),
			"scarring":          pick("Absent", "Present", 0.8),
			"cysts":             pick("No cysts detected", "Multiple small cysts detected", 0.9),
			"bloodFlow":         pick("Normal", "Reduced", 0.6),
		},
		"recommendations": stubRecommendations(),
	}
	return json.Marshal(payload)
}

// StreamChat is not available in stub mode.
func (StubClient) StreamChat(ctx context.Context, messages []Message) (*StreamResponse, error) {
	_ = ctx
	_ = messages
	return nil, ErrNotConfigured
}

func pick(common, rare string, threshold float64) string {
	if rand.Float64() > threshold {
		return rare
	}
	return common
}

func stubRecommendations() string {
	n := rand.Intn(3) + 4
	return strings.Join(healthRecommendations[:n], "\n")
}

var _ Client = StubClient{}
