package scanclient

import (
	"encoding/json"
	"strings"

	"renovix-backend/internal/reporttext"
)

// Report is the presentable rendering of a completed run: cleaned text
// for the result view and the narrator, plus the stricter export body.
type Report struct {
	ReportID        string          `json:"reportId"`
	PatientName     string          `json:"patientName,omitempty"`
	Diagnosis       string          `json:"diagnosis"`
	Confidence      float64         `json:"confidence"`
	Risk            reporttext.Risk `json:"risk"`
	Findings        string          `json:"findings"`
	Recommendations string          `json:"recommendations"`
	Narration       string          `json:"narration"`
	ExportText      string          `json:"exportText"`
}

// BuildReport renders a completed Result for display, narration, and
// PDF export. reportText is the extracted report text, used only for
// patient-name detection; pass "" for image scans.
func BuildReport(result Result, reportText string) Report {
	diagnosis := reporttext.CleanText(result.Diagnosis)
	recommendations := reporttext.CleanText(result.Recommendations)
	findings := findingsText(result.Findings)

	report := Report{
		ReportID:        reporttext.NewReportID(),
		PatientName:     reporttext.ExtractPatientName(reportText),
		Diagnosis:       diagnosis,
		Confidence:      result.Confidence,
		Risk:            reporttext.RiskLevel(result.Diagnosis, result.Confidence),
		Findings:        findings,
		Recommendations: recommendations,
	}
	report.Narration = joinSections(diagnosis, findings, recommendations)
	report.ExportText = reporttext.SanitizeForExport(
		"Report " + report.ReportID +
			"\n\nDiagnosis\n" + result.Diagnosis +
			"\n\nFindings\n" + findings +
			"\n\nRecommendations\n" + result.Recommendations)
	return report
}

// findingsText flattens the raw findings payload into readable lines.
// Undecodable payloads render as the stock empty-findings phrase rather
// than leaking raw JSON into the report.
func findingsText(raw json.RawMessage) string {
	var decoded any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			decoded = nil
		}
	}
	return reporttext.ValueToString(decoded)
}

func joinSections(sections ...string) string {
	var parts []string
	for _, s := range sections {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}
