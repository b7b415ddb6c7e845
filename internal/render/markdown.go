package render

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Markdown turns model-written summaries into safe HTML fragments. Summaries
// often arrive with bullet lists or emphasis; raw HTML inside them is dropped.
type Markdown struct {
	converter goldmark.Markdown
	policy    *bluemonday.Policy
}

func NewMarkdown() *Markdown {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &Markdown{
		converter: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:    policy,
	}
}

// HTML renders input. On a conversion failure the escaped plain text is
// returned so a summary is never lost.
func (m *Markdown) HTML(input string) template.HTML {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := m.converter.Convert([]byte(input), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(input))
	}
	return template.HTML(strings.TrimSpace(string(m.policy.SanitizeBytes(buf.Bytes()))))
}
