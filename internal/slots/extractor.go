// Package slots extracts structured event details from free-text chat
// messages and generates follow-up questions for fields that are still
// missing. Extraction is best-effort pattern matching, not NLU: a field the
// rules cannot infer stays nil, it is never an error.
package slots

import (
	"regexp"
	"strings"

	"github.com/tjfontaine/eventchat/internal/domain"
)

var (
	activityPattern   = regexp.MustCompile(`indoor|outdoor`)
	climbingPattern   = regexp.MustCompile(`rock climbing|climbing`)
	guestCountPattern = regexp.MustCompile(`(?i)\d+\s*(?:people|guests|friends)`)
	groupNounPattern  = regexp.MustCompile(`family|friends|colleagues`)
	dateRangePattern  = regexp.MustCompile(`january|february|march|april|may|june|july|august|september|october|november|december|\d{1,2}(?:st|nd|rd|th)?\s+to\s+\d{1,2}(?:st|nd|rd|th)?`)
	hobbyPattern      = regexp.MustCompile(`hiking|climbing|skiing|cycling|running|art|cooking`)
	locationPattern   = regexp.MustCompile(`(?i)\bin\s+([\w \t]+(?:city|town|state|province|country))`)
	// locationFallback catches bare capitalized place names ("in Denver")
	// that carry none of the suffix nouns the primary pattern needs.
	locationFallback = regexp.MustCompile(`\bin\s+([A-Z][a-zA-Z]+)`)
	userBasePattern  = regexp.MustCompile(`(?i)\bbased\s+in\s+([\w \t]+)`)
)

var monthNames = map[string]bool{
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}

// rule inspects one message and may fill fields of the scratch record.
// Rules run in order; a later rule may overwrite an earlier one's value.
type rule func(raw, lower string, d *domain.EventDetails)

// extractionRules is the ordered rule list. The ordering is load-bearing:
// the climbing rule intentionally forces activity to outdoor even when the
// message says indoor elsewhere (preserved from the product behavior, see
// DESIGN.md), and the generic hobby rule must not clobber the climbing
// rule's more specific value.
var extractionRules = []rule{
	matchActivity,
	matchClimbing,
	matchGuests,
	matchDateRange,
	matchHobby,
	matchLocation,
	matchUserBase,
}

// Extract returns a partial EventDetails with only the fields the rules
// could infer from this one message. It never fails; it does not see
// earlier turns.
func Extract(message string) *domain.EventDetails {
	details := &domain.EventDetails{}
	lower := strings.ToLower(message)

	for _, apply := range extractionRules {
		apply(message, lower, details)
	}

	return details
}

func matchActivity(_, lower string, d *domain.EventDetails) {
	if !activityPattern.MatchString(lower) {
		return
	}
	if strings.Contains(lower, "indoor") {
		d.Activity = strptr("indoor")
	} else {
		d.Activity = strptr("outdoor")
	}
}

func matchClimbing(_, lower string, d *domain.EventDetails) {
	if !climbingPattern.MatchString(lower) {
		return
	}
	// Climbing is assumed outdoor, overriding the literal activity match.
	d.Activity = strptr("outdoor")
	d.Hobbies = strptr("rock climbing")
}

func matchGuests(raw, lower string, d *domain.EventDetails) {
	if m := guestCountPattern.FindString(raw); m != "" {
		d.Guests = strptr(m)
		return
	}
	if m := groupNounPattern.FindString(lower); m != "" {
		d.Guests = strptr(m)
	}
}

func matchDateRange(_, lower string, d *domain.EventDetails) {
	if m := dateRangePattern.FindString(lower); m != "" {
		// Stored as matched, no normalization to calendar dates.
		d.DateRange = strptr(m)
	}
}

func matchHobby(_, lower string, d *domain.EventDetails) {
	if d.Hobbies != nil {
		return
	}
	if m := hobbyPattern.FindString(lower); m != "" {
		d.Hobbies = strptr(m)
	}
}

func matchLocation(raw, _ string, d *domain.EventDetails) {
	if m := locationPattern.FindStringSubmatch(raw); m != nil {
		d.Location = strptr(m[1])
		return
	}

	for _, m := range locationFallback.FindAllStringSubmatchIndex(raw, -1) {
		word := raw[m[2]:m[3]]
		if monthNames[strings.ToLower(word)] {
			continue
		}
		// "based in X" is the user's home base, handled separately.
		if prefixed(raw, m[0], "based ") {
			continue
		}
		d.Location = strptr(word)
		return
	}
}

func matchUserBase(raw, _ string, d *domain.EventDetails) {
	if m := userBasePattern.FindStringSubmatch(raw); m != nil {
		d.UserBase = strptr(strings.TrimSpace(m[1]))
	}
}

// prefixed reports whether the text immediately before offset ends with
// the given prefix, case-insensitively.
func prefixed(s string, offset int, prefix string) bool {
	if offset < len(prefix) {
		return false
	}
	return strings.EqualFold(s[offset-len(prefix):offset], prefix)
}

func strptr(s string) *string {
	return &s
}
