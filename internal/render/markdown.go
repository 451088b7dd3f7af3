// Package render turns backend answers into sanitized HTML.
package render

import (
	"bytes"
	"html/template"
	"regexp"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/eduquery/eduquery/internal/domain"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
)

// DefaultStyle is the highlighting style used for code blocks
const DefaultStyle = "github-dark"

// Renderer converts markdown answers to HTML. It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	style  string
}

// NewRenderer creates a renderer using the given highlighting style.
// An unknown style falls back to DefaultStyle.
func NewRenderer(style string) *Renderer {
	if styles.Get(style) == styles.Fallback {
		style = DefaultStyle
	}

	// Raw HTML in the markdown is dropped by goldmark unless html.WithUnsafe is
	// set; the policy below is the second line.
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle(style),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)).OnElements("pre", "code", "span", "div")

	return &Renderer{md: md, policy: policy, style: style}
}

// Render returns the answer of result as HTML, or "" when there is nothing to show.
func (r *Renderer) Render(result *domain.AnswerResult) template.HTML {
	if !result.HasAnswer() {
		return ""
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(result.Answer), &buf); err != nil {
		// Fall back to the escaped text rather than showing nothing.
		return template.HTML("<p>" + template.HTMLEscapeString(result.Answer) + "</p>")
	}
	return template.HTML(r.policy.SanitizeBytes(buf.Bytes()))
}

// StyleSheet returns the CSS for the class names emitted in code blocks
func (r *Renderer) StyleSheet() ([]byte, error) {
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&buf, styles.Get(r.style)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
