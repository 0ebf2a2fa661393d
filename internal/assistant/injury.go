package assistant

import "strings"

var injuryKeywords = []string{
	"wound", "cut", "bruise", "burn", "scrape", "scratch", "injury", "hurt", "pain",
	"bleeding", "swollen", "sprain", "fracture", "broken", "dislocated", "torn",
	"rash", "bite", "sting", "laceration", "abrasion", "contusion", "trauma",
	"accident", "fall", "hit", "injured", "medical", "first aid", "emergency",
}

// IsInjuryRelated reports whether any of texts mentions an injury keyword.
// Matching is substring based, so "cutting" and "painful" also count.
func IsInjuryRelated(texts ...string) bool {
	joined := strings.ToLower(strings.Join(texts, " "))
	for _, kw := range injuryKeywords {
		if strings.Contains(joined, kw) {
			return true
		}
	}
	return false
}
