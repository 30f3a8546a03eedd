package detection

import "strings"

var responsePhrases = []string{
	"please reply", "please respond", "respond asap", "reply asap",
	"get back to me", "let me know", "confirm receipt", "awaiting your response",
	"waiting for your reply", "kindly respond", "reply to this email",
}

// RequiresResponse reports whether the email asks the recipient to answer.
// A question in the subject or a request phrase in the body triggers it.
func RequiresResponse(subject, body string) bool {
	if strings.HasSuffix(strings.TrimSpace(subject), "?") {
		return true
	}
	return containsAny(strings.ToLower(subject+" "+body), responsePhrases)
}
