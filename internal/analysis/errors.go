package analysis

// Client-facing error codes for the analyze pipeline. Async failures
// land on the session row; synchronous ones map onto HTTP responses.
const (
	CodeAuthMissing     = "AUTH_001"
	CodeAuthInvalid     = "AUTH_002"
	CodeAuthMismatch    = "AUTH_003"
	CodeSessionNotFound = "SESSION_001"
	CodeInvalidInput    = "INPUT_001"
	CodeUnreadablePDF   = "PDF_001"
	CodeAnalysisFailed  = "ANALYSIS_001"
)

// CodeMessage returns the client-facing message for a pipeline code.
func CodeMessage(code string) string {
	switch code {
	case CodeAuthMissing:
		return "Authentication required"
	case CodeAuthInvalid:
		return "Invalid authentication"
	case CodeAuthMismatch:
		return "You do not have access to this session"
	case CodeSessionNotFound:
		return "Session not found"
	case CodeInvalidInput:
		return "No valid scan file found for this session"
	case CodeUnreadablePDF:
		return "The PDF could not be read. Please upload a clearer copy"
	case CodeAnalysisFailed:
		return "Analysis failed. Please try again"
	default:
		return "Analysis failed. Please try again"
	}
}
