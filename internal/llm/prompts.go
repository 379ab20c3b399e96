package llm

const chatSystemPrompt = `You are a helpful medical AI assistant helping patients understand their medical reports and scan results.
Provide clear, concise answers grounded in the provided report.

MEDICINE SUGGESTIONS:
- When the user asks about medicines, treatment, or emergency care, suggest commonly used medicines relevant to the diagnosed condition.
- Format each medicine suggestion with: **Medicine Name**, Typical Use, Common Dosage Range.
- Include both prescription and OTC options where appropriate.
- For emergency situations, prioritize immediate-action medicines first.

HOME REMEDIES:
- When asked, suggest evidence-based home remedies including dietary changes, hydration tips, herbal supplements, and lifestyle modifications relevant to the condition.
- Format remedies clearly with bullet points.

DISCLAIMER (MANDATORY):
- ALWAYS end any medicine or treatment suggestion with this disclaimer:
  "⚠️ **Disclaimer:** These suggestions are for informational purposes only. All medicines should be taken strictly as prescribed by a licensed physician. Do not self-medicate. Please consult your doctor before taking any medication."

If unsure about a condition, say so and recommend consulting a clinician immediately.`

const diagnoseSystemPrompt = `You are a medical scan analysis engine. Respond with JSON only. No markdown.
The JSON object must have exactly these keys:
  "diagnosis": short diagnosis string,
  "confidence": number between 0 and 1,
  "findings": object with keys "summary" (string), "keyFindings" (array of strings), "prognosisAndImplications" (string),
  "recommendations": newline-separated bullet list string.
Never omit keys. Output must match the schema exactly.`

const fixJSONSystemPrompt = "You are a JSON repair tool. Return only valid JSON that matches the schema exactly."

// Report text beyond this many characters is clipped from the chat
// context to stay below typical model limits.
const chatContextClip = 16000

// BuildChatMessages assembles the message list for a patient chat turn.
// Diagnosis and report text are optional context.
func BuildChatMessages(diagnosis, reportText string, history []Message, userMessage string) []Message {
	system := chatSystemPrompt
	if diagnosis != "" {
		system += "\n\nDiagnosis from the analysis: " + diagnosis
	}
	if reportText != "" {
		clipped := reportText
		if len(clipped) > chatContextClip {
			clipped = clipped[:chatContextClip]
		}
		system += "\n\nExtracted report content:\n" + clipped
	}

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: system})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: userMessage})
	return messages
}

// BuildDiagnoseMessages assembles the blocking analysis request.
func BuildDiagnoseMessages(input DiagnoseInput) []Message {
	user := "Analyze this medical report and return the diagnosis JSON.\n\nFile: " +
		input.FileName + " (" + input.MimeType + ")\n\nReport content:\n" + input.ReportText
	return []Message{
		{Role: "system", Content: diagnoseSystemPrompt},
		{Role: "user", Content: user},
	}
}

// BuildFixJSONMessages asks the model to repair its previous output.
func BuildFixJSONMessages(raw []byte) []Message {
	return []Message{
		{Role: "system", Content: fixJSONSystemPrompt},
		{Role: "user", Content: "Fix this JSON to match the schema exactly. Output JSON only:\n" + string(raw)},
	}
}
