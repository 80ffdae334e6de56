package slots

import (
	"strings"

	"github.com/tjfontaine/eventchat/internal/domain"
)

// MissingQuestions returns one human-readable question per still-unset
// field, in fixed field order. An empty slice means every field is filled.
func MissingQuestions(d *domain.EventDetails) []string {
	var questions []string
	if d.Activity == nil {
		questions = append(questions, "Is this an indoor or outdoor activity?")
	}
	if d.Guests == nil {
		questions = append(questions, "Who are you inviting, or how many guests are you expecting?")
	}
	if d.DateRange == nil {
		questions = append(questions, "What date range are you planning this event for?")
	}
	if d.Hobbies == nil {
		questions = append(questions, "What are your hobbies or interests related to this event?")
	}
	if d.Location == nil {
		questions = append(questions, "Where are you planning to hold this event?")
	}
	if d.UserBase == nil {
		questions = append(questions, "Where are you based?")
	}
	return questions
}

// RenderQuestions formats the missing-field questions for inclusion in the
// prompt. Returns the empty string when nothing is missing.
func RenderQuestions(d *domain.EventDetails) string {
	questions := MissingQuestions(d)
	if len(questions) == 0 {
		return ""
	}
	return "\nPlease provide more details: " + strings.Join(questions, " ")
}
