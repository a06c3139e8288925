package intake

import (
	"regexp"
	"strings"
)

// schedulingPatterns match a visitor asking to book.
var schedulingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(book|schedule|reserve)(\s+[\w'-]+){0,3}?\s+(calls?|meetings?|appointments?|consult\w*|sessions?|slots?|time)\b`),
	regexp.MustCompile(`(?i)\b(make|set\s*up|arrange)(\s+[\w'-]+){0,3}?\s+(calls?|meetings?|appointments?|consult\w*)\b`),
	regexp.MustCompile(`(?i)\bwhen\s+can\s+we\s+(meet|talk|chat)\b`),
	regexp.MustCompile(`(?i)\b(available|availability)\s+(slots?|times?|dates?)\b`),
	regexp.MustCompile(`(?i)\bwhat\s+times?\s+(are|is)\s+(available|free|open)\b`),
	regexp.MustCompile(`(?i)\b(let'?s|i'?d\s+like\s+to|i\s+want\s+to)\s+(book|schedule|meet)\b`),
	regexp.MustCompile(`(?i)\bbook(ing)?\s+now\b`),
}

// affirmativePattern matches a reply that opens with a yes.
var affirmativePattern = regexp.MustCompile(`(?i)^(yes|yeah|yep|yup|sure|ok(ay)?|sounds\s+(good|great)|let'?s\s+do\s+(it|that)|please\s+do|absolutely|definitely|of\s+course|go\s+ahead|i'?d\s+(like|love)\s+(that|one))\b`)

// hedgePattern marks a yes that is qualified or deferred.
var hedgePattern = regexp.MustCompile(`(?i)\b(but|however|though|although|first|before|not|don'?t|later|maybe)\b|\?\s*$`)

// offerPattern matches a bot message offering to schedule.
var offerPattern = regexp.MustCompile(`(?i)\b(schedul\w*|book\w*|appointment|consultation|set\s+up\s+a\s+(call|meeting))\b`)

// DetectSchedulingIntent reports whether the visitor wants to book. A reply
// opening with a yes only counts as intent when the previous bot message offered
// to schedule.
func DetectSchedulingIntent(message, lastBotMessage string) bool {
	message = strings.TrimSpace(message)
	if message == "" {
		return false
	}
	for _, pat := range schedulingPatterns {
		if pat.MatchString(message) {
			return true
		}
	}
	if affirmativePattern.MatchString(message) && !hedgePattern.MatchString(message) {
		return offerPattern.MatchString(lastBotMessage)
	}
	return false
}
