package session

import "strings"

const role = "You are a helpful assistant that tracks a student's study session and keeps a running summary of it."

// seedPrompt asks for the first summary of a session.
func seedPrompt(objective, screen string) string {
	var b strings.Builder
	b.WriteString(role)
	b.WriteString("\nHere is student learning objective for the current study session:\n")
	b.WriteString(objective)
	b.WriteString("\n\nHere is the information on student screen:\n")
	b.WriteString(screen)
	b.WriteString(`

This is the start of the session. Write a short summary of what the student is studying right now, with regard to the learning objective.
Mention the topics and resources that are on screen. Write plain text in one or two short paragraphs.
Return only the summary, without a title or any comment about these instructions.
`)
	return b.String()
}

// updatePrompt asks the model to either extend the summary or return it
// verbatim. The model alone decides what counts as meaningful change.
func updatePrompt(objective, existing, screen string) string {
	var b strings.Builder
	b.WriteString(role)
	b.WriteString("\nHere is student learning objective for the current study session:\n")
	b.WriteString(objective)
	b.WriteString("\n\nHere is the summary of the session so far:\n<Summary>\n")
	b.WriteString(existing)
	b.WriteString("\n</Summary>\n\nHere is the new information on student screen:\n")
	b.WriteString(screen)
	b.WriteString(`

Decide whether the new information shows a meaningfully new development in the session: a new topic, a new resource, or measurable progress toward the learning objective.
Repeated content, small scrolls, ads, and unrelated windows are not meaningful.
If the development is meaningful, return the existing summary unchanged followed by a new short paragraph that describes it in chronological order. Never remove or rewrite existing text.
If it is not meaningful, return the existing summary exactly as given, character for character.
Return only the summary text, without the <Summary> tags or any comment about your decision.
`)
	return b.String()
}
