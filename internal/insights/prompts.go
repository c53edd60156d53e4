package insights

import (
	"fmt"
	"strings"
)

const role = "You are a helpful assistant that explains things clearly and simply. Keep your explanations short and to the point."

const (
	summaryInstruction     = "provide short summary of the screen content"
	linkInstruction        = "provide web page urls with short descriptions (8 words max offering the student to visit the page) that predict the next step in the learning process based on the screen content. Include links only if you are confident that they are relevant to the student's learning objective. Do not suggest these already visited urls: %s"
	suggestionsInstruction = "make suggestions how student can continue their learning based on the screen content and your findings"
)

const (
	linksFormat    = `{"links": [{"url": "link1", "summary": "summary1"}, {"url": "link2", "summary": "summary2"}, ...]}`
	insightsFormat = `{"summary": "...", "links": [{"url": "https://link1.com", "summary": "summary1"}, {"url": "https://link2.com", "summary": "summary2"}, ...], "suggestions": "..."}`
)

// buildPrompt assembles the shared insight prompt.
func buildPrompt(objective, screen, instructions, format string) string {
	var b strings.Builder
	b.WriteString(role)
	b.WriteString("\nHere is student learning objective for the current study session:\n")
	b.WriteString(objective)
	b.WriteString("\n\nHere is the information on student screen:\n")
	b.WriteString(screen)
	b.WriteString("\n\nPlease analyze it and do the following instructions: ")
	b.WriteString(instructions)
	b.WriteString("\nThe output should be in the following format: ")
	b.WriteString(format)
	b.WriteString("\n\nImportant: consider student learning objective when generating insights\n")
	return b.String()
}

// LinksPrompt builds the link-suggestion prompt. visited is the rendered
// ledger ("none" when empty).
func LinksPrompt(objective, screen, visited string) string {
	return buildPrompt(objective, screen, fmt.Sprintf(linkInstruction, visited), linksFormat)
}

// InsightsPrompt builds the summary + links + suggestions prompt.
func InsightsPrompt(objective, screen, visited string) string {
	instructions := strings.Join([]string{
		summaryInstruction,
		fmt.Sprintf(linkInstruction, visited),
		suggestionsInstruction,
	}, "; ")
	return buildPrompt(objective, screen, instructions, insightsFormat)
}
