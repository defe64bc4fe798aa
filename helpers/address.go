package helpers

import "regexp"

// emailPattern is deliberately loose: MTA log lines quote addresses in many
// shapes (angle brackets, routing annotations, trailing punctuation) and we
// only need the address-looking token itself, not full RFC 5322 validation.
// Trailing label characters are matched greedily.
var emailPattern = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)

// FindEmails returns every email-shaped substring of text, in line order.
func FindEmails(text string) []string {
	return emailPattern.FindAllString(text, -1)
}

// FirstEmail returns the first email-shaped substring of text, or "" if
// text contains none.
func FirstEmail(text string) string {
	return emailPattern.FindString(text)
}
