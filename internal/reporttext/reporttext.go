// Package reporttext holds the text sanitation and presentation helpers
// shared by report rendering, narration input, and exports.
package reporttext

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	headingRe   = regexp.MustCompile(`#{1,6}\s*`)
	boldRe      = regexp.MustCompile(`\*{1,3}`)
	italicRe    = regexp.MustCompile(`_{1,3}`)
	ruleRe      = regexp.MustCompile(`---+`)
	fenceRe     = regexp.MustCompile("(?s)```.*?```")
	// Letters in any script survive; Hindi translations pass through
	// here on their way to the narrator. The danda marks are kept too.
	symbolRe    = regexp.MustCompile(`[^\p{L}\p{N}_\s.,;:!?()\-–—•·/\\%°\n\r'"&@+=$<>\[\]{}।॥]`)
	blankRunRe  = regexp.MustCompile(`\n{3,}`)
	camelRe     = regexp.MustCompile(`([A-Z])`)
	multiWSRe   = regexp.MustCompile(`\s+`)
	inlineCode  = regexp.MustCompile("`([^`]*)`")
	mdLinkRe    = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	boldPairRe  = regexp.MustCompile(`\*{1,3}(.*?)\*{1,3}`)
	underPairRe = regexp.MustCompile(`_{1,3}(.*?)_{1,3}`)
)

// CleanText strips markdown artifacts, emojis, and decorative symbols
// from model output before it reaches the report view or the narrator.
func CleanText(text string) string {
	out := headingRe.ReplaceAllString(text, "")
	out = boldRe.ReplaceAllString(out, "")
	out = italicRe.ReplaceAllString(out, "")
	out = ruleRe.ReplaceAllString(out, "")
	out = fenceRe.ReplaceAllString(out, "")
	out = symbolRe.ReplaceAllString(out, "")
	out = blankRunRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// SanitizeForExport is the stricter variant used for PDF export. It
// keeps the inner text of emphasis spans and inline code instead of
// deleting the markers wholesale.
func SanitizeForExport(text string) string {
	out := headingRe.ReplaceAllString(text, "")
	out = boldPairRe.ReplaceAllString(out, "$1")
	out = underPairRe.ReplaceAllString(out, "$1")
	out = ruleRe.ReplaceAllString(out, "")
	out = fenceRe.ReplaceAllString(out, "")
	out = inlineCode.ReplaceAllString(out, "$1")
	out = mdLinkRe.ReplaceAllString(out, "$1")
	out = symbolRe.ReplaceAllString(out, "")
	out = blankRunRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// ValueToString renders an arbitrary decoded JSON value as readable
// lines. Maps become "Label: value" pairs with camelCase and snake_case
// keys spaced out; nested values recurse. Nil yields a stock phrase so
// empty findings never render as a blank section.
func ValueToString(val any) string {
	switch v := val.(type) {
	case nil:
		return "No significant findings detected"
	case string:
		return CleanText(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case []any:
		var parts []string
		for _, item := range v {
			if s := ValueToString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case []string:
		var parts []string
		for _, item := range v {
			if s := CleanText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, k := range keys {
			text := ValueToString(v[k])
			if text == "" {
				continue
			}
			parts = append(parts, labelFromKey(k)+": "+text)
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func labelFromKey(key string) string {
	label := camelRe.ReplaceAllString(key, " $1")
	label = strings.ReplaceAll(label, "_", " ")
	return strings.TrimSpace(label)
}

const idCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewReportID returns a report identifier like RNX-20260115-4KQZ.
func NewReportID() string {
	date := time.Now().UTC().Format("20060102")
	return "RNX-" + date + "-" + randomToken(4)
}

// NewReferralID returns a referral identifier like REF-8PM2XA.
func NewReferralID() string {
	return "REF-" + randomToken(6)
}

func randomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable for id generation
		panic(err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = idCharset[int(b)%len(idCharset)]
	}
	return string(out)
}

// Risk is the coarse triage bucket shown alongside a diagnosis.
type Risk struct {
	Label string
	Level string
}

// RiskLevel classifies a diagnosis string, falling back to the model
// confidence when no keyword matches.
func RiskLevel(diagnosis string, confidence float64) Risk {
	lower := strings.ToLower(diagnosis)

	healthy := strings.Contains(lower, "normal") ||
		strings.Contains(lower, "healthy") ||
		strings.Contains(lower, "no significant")
	severe := strings.Contains(lower, "stage 5") ||
		strings.Contains(lower, "stage 4") ||
		strings.Contains(lower, "failure") ||
		strings.Contains(lower, "end-stage") ||
		strings.Contains(lower, "cancer") ||
		strings.Contains(lower, "malignant")
	moderate := strings.Contains(lower, "stage 3") ||
		strings.Contains(lower, "stage 2") ||
		strings.Contains(lower, "moderate") ||
		strings.Contains(lower, "mild")

	switch {
	case healthy:
		return Risk{Label: "Low Risk", Level: "low"}
	case severe:
		return Risk{Label: "High Risk", Level: "high"}
	case moderate:
		return Risk{Label: "Moderate Risk", Level: "moderate"}
	case confidence > 0.75:
		return Risk{Label: "High Risk", Level: "high"}
	case confidence > 0.4:
		return Risk{Label: "Moderate Risk", Level: "moderate"}
	default:
		return Risk{Label: "Low Risk", Level: "low"}
	}
}

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:Mr\.|Mrs\.|Ms\.|Dr\.)\s+([A-Z][A-Z\s]+)`),
	regexp.MustCompile(`Name\s*:\s*([A-Za-z\s]+?)(?:\s*:|\s*$|\n)`),
	regexp.MustCompile(`Patient\s*(?:Name)?\s*:\s*([A-Za-z\s]+?)(?:\s*:|\s*$|\n)`),
}

// ExtractPatientName pulls a likely patient name out of raw report
// text. Returns "" when no known header pattern matches.
func ExtractPatientName(reportText string) string {
	if reportText == "" {
		return ""
	}
	for _, re := range namePatterns {
		if m := re.FindStringSubmatch(reportText); len(m) > 1 && m[1] != "" {
			return multiWSRe.ReplaceAllString(strings.TrimSpace(m[1]), " ")
		}
	}
	return ""
}
