// Package prompt assembles the upstream prompt for a chat turn. The
// upstream model conditions on positional context, so the concatenation
// order (template, current details, history, current turn, follow-up
// questions) must not change.
package prompt

import (
	"encoding/json"
	"strings"

	"github.com/tjfontaine/eventchat/internal/domain"
)

// eventPlanningTemplate is the system template for the event coordinator
// persona. {query} is replaced with the current user message.
const eventPlanningTemplate = `
You are an AI event coordinator that helps community grant recipients plan meetups with those in their local community involving recreational activities. The user will ask you about an event that they are planning. Be on the lookout for the following information in the user's query:

activity (indoor or outdoor)
guests (who and/or how many)
date range
their hobbies/interests
exact or approximate location
where the user is based

Ask the user about any missing information and store it in memory, along with the information given in the user's query.

`

// FormatHistory renders an ordered history as newline-joined
// "Human: ..."/"Assistant: ..." lines. Empty history yields an empty
// string.
func FormatHistory(history []domain.Message) string {
	if len(history) == 0 {
		return ""
	}

	lines := make([]string, len(history))
	for i, msg := range history {
		role := "Assistant"
		if msg.Role == "user" {
			role = "Human"
		}
		lines[i] = role + ": " + msg.Content
	}
	return strings.Join(lines, "\n")
}

// Input carries everything Build needs for one turn.
type Input struct {
	Message          string
	History          []domain.Message
	Details          *domain.EventDetails
	MissingQuestions string
}

// Build produces the final prompt handed to the upstream provider.
func Build(in Input) string {
	detailsJSON, _ := json.Marshal(in.Details)

	template := strings.ReplaceAll(eventPlanningTemplate, "{query}", in.Message)

	var b strings.Builder
	b.WriteString(template)
	b.WriteString("\nCurrent event details: ")
	b.Write(detailsJSON)

	if history := FormatHistory(in.History); history != "" {
		b.WriteString("\n")
		b.WriteString(history)
		b.WriteString("\nHuman: ")
		b.WriteString(in.Message)
	}

	b.WriteString("\nAssistant:")
	b.WriteString(in.MissingQuestions)

	return b.String()
}
