// Package insights asks the model for follow-up links and insight bundles and
// decodes the structured replies.
package insights

// Link is one suggested follow-up page. Either field may be absent.
type Link struct {
	URL     *string `json:"url,omitempty"`
	Summary *string `json:"summary,omitempty"`
}

// Insights is the decoded result of one generation call.
type Insights struct {
	Summary     *string `json:"summary,omitempty"`
	Links       []Link  `json:"links,omitempty"`
	Suggestions *string `json:"suggestions,omitempty"`
}

// URLOf returns the link URL or "".
func (l Link) URLOf() string {
	if l.URL == nil {
		return ""
	}
	return *l.URL
}

// SummaryOf returns the link summary or "".
func (l Link) SummaryOf() string {
	if l.Summary == nil {
		return ""
	}
	return *l.Summary
}

// FirstURL returns the first link's URL, or "" when there are no links.
func (in *Insights) FirstURL() string {
	if in == nil || len(in.Links) == 0 {
		return ""
	}
	return in.Links[0].URLOf()
}

// SummaryText returns the summary or "".
func (in *Insights) SummaryText() string {
	if in == nil || in.Summary == nil {
		return ""
	}
	return *in.Summary
}

// SuggestionsText returns the suggestions or "".
func (in *Insights) SuggestionsText() string {
	if in == nil || in.Suggestions == nil {
		return ""
	}
	return *in.Suggestions
}

// NewLink builds a link from plain strings; empty strings stay absent.
func NewLink(url, summary string) Link {
	var l Link
	if url != "" {
		l.URL = &url
	}
	if summary != "" {
		l.Summary = &summary
	}
	return l
}
