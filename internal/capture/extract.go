package capture

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/llm"
	"github.com/hpungsan/mate/internal/logging"
	"github.com/hpungsan/mate/internal/session"
)

// AnalysisPrompt asks the vision model for an XML description of every tab.
const AnalysisPrompt = `Analyze the provided screenshot, which contains multiple tabs (e.g., website or app interface). Generate an XML structure that organizes each tab's content, including:

Tab Name: The main content of the tab in a few words

Tab URL: The URL of the tab if available, otherwise leave it blank.

Context: A brief description of the tab's purpose (e.g., "Main dashboard", "Settings page for user preferences").

Text Content: Extract and summarize all visible text in the tab.

Image Content: Describe key images or visual elements, explaining their role

Return the output in the following XML format:

<Tab>
    <Name>Tab Name</Name>
    <URL>Tab URL</URL>
    <Context>Tab description</Context>
    <TextContent>
        Extracted text content
    </TextContent>
    <ImageContent>
        <Image>
            <Description>Image description</Description>
            <Role>Image role</Role>
        </Image>
    </ImageContent>
</Tab>

Ensure the XML is organized by tab and clearly describes both text and images for each section of the screenshot.
do not include other xml tags than the ones specified.
Be concise and to the point. Dont provide more than 1000 tokens.
Ignore ads and other non-content elements.
Output well formatted xml and nothing else.`

// ExtractorOptions configures an Extractor.
type ExtractorOptions struct {
	Model     string
	MaxTokens int
	Logger    *zap.Logger
}

// Extractor turns a snapshot into a context document with one model call.
// There is no retry here: a failed extraction skips the cycle.
type Extractor struct {
	gateway   llm.Gateway
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(gw llm.Gateway, opts ExtractorOptions) *Extractor {
	return &Extractor{
		gateway:   gw,
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		logger:    logging.OrNop(opts.Logger).Named("extract"),
	}
}

// Extract returns the context document for snap, or an EXTRACTION error.
func (e *Extractor) Extract(ctx context.Context, snap Snapshot) (session.Document, error) {
	text, err := e.gateway.Complete(ctx, llm.Request{
		Model:     e.model,
		Prompt:    AnalysisPrompt,
		Image:     &llm.Image{Data: snap.Data, MediaType: snap.MediaType},
		MaxTokens: e.maxTokens,
	})
	if err != nil {
		return session.Document{}, errors.NewExtraction("no context extracted this cycle", err)
	}

	text = stripXMLFence(text)
	if text == "" {
		return session.Document{}, errors.NewExtraction("model returned an empty context document", nil)
	}

	e.logger.Debug("context extracted",
		zap.String("source", snap.Source),
		zap.Int("image_bytes", len(snap.Data)),
		zap.Int("chars", len(text)))
	return session.NewDocument(text, snap.Source, snap.TakenAt), nil
}

// stripXMLFence drops a ```xml fence some models add despite the prompt.
func stripXMLFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
