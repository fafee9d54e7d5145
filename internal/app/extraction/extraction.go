// Package extraction turns captured page content into the named values a
// claim is proven over. Extractors are a closed set of primitives resolved
// from template specs, never arbitrary code.
package extraction

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/zephis-org/zephis-core/internal/app/template"
)

// ExtractedData is the result of running a template's extractors against one
// captured document.
type ExtractedData struct {
	Raw       map[string]string `json:"raw"`
	Processed string            `json:"processed"`
	Timestamp time.Time         `json:"timestamp"`
	URL       string            `json:"url"`
	Domain    string            `json:"domain"`
}

// Extractor produces claim values from captured content.
type Extractor interface {
	Extract(ctx context.Context, tmpl *template.Template, content string, url string) (*ExtractedData, error)
}

// primitive is one extractor operation applied to the content.
type primitive func(content string, arg string) (string, error)

// primitives is the closed operation set. Template specs reference these by
// name, optionally with an argument after a colon ("regex:\\d+").
var primitives = map[string]primitive{
	"text":   extractText,
	"number": extractNumber,
	"regex":  extractRegex,
	"attr":   extractAttr,
	"exists": extractExists,
}

var (
	numberPattern = regexp.MustCompile(`-?[\d,]+(?:\.\d+)?\s*[kKmMbB]?`)
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

func extractText(content, selector string) (string, error) {
	segment := selectSegment(content, selector)
	text := tagPattern.ReplaceAllString(segment, " ")
	text = spacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text), nil
}

func extractNumber(content, selector string) (string, error) {
	text, err := extractText(content, selector)
	if err != nil {
		return "", err
	}
	match := numberPattern.FindString(text)
	if match == "" {
		return "", fmt.Errorf("no number in extracted text %q", text)
	}
	return strings.TrimSpace(match), nil
}

func extractRegex(content, pattern string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid extractor pattern %q: %w", pattern, err)
	}
	groups := re.FindStringSubmatch(content)
	if groups == nil {
		return "", fmt.Errorf("pattern %q matched nothing", pattern)
	}
	if len(groups) > 1 {
		return groups[1], nil
	}
	return groups[0], nil
}

func extractAttr(content, spec string) (string, error) {
	// spec is "<selector>@<attribute>".
	selector, attr, found := strings.Cut(spec, "@")
	if !found || attr == "" {
		return "", fmt.Errorf("attr extractor needs selector@attribute, got %q", spec)
	}
	segment := selectSegment(content, selector)
	re := regexp.MustCompile(regexp.QuoteMeta(attr) + `\s*=\s*"([^"]*)"`)
	groups := re.FindStringSubmatch(segment)
	if groups == nil {
		return "", fmt.Errorf("attribute %q not found under %q", attr, selector)
	}
	return groups[1], nil
}

func extractExists(content, selector string) (string, error) {
	if selector == "" {
		return "false", nil
	}
	if strings.Contains(content, selector) {
		return "true", nil
	}
	return "false", nil
}

// selectSegment narrows content to the region after the selector marker.
// Selectors here are literal markers (ids, class names, labels), not a CSS
// engine; an empty selector means the whole document.
func selectSegment(content, selector string) string {
	if selector == "" {
		return content
	}
	idx := strings.Index(content, selector)
	if idx < 0 {
		return ""
	}
	segment := content[idx+len(selector):]
	const window = 512
	if len(segment) > window {
		segment = segment[:window]
	}
	return segment
}

// parseSpec splits "regex:\\d+" into the primitive name and its argument.
// A bare name gets an empty argument.
func parseSpec(spec string) (string, string) {
	name, arg, found := strings.Cut(spec, ":")
	if !found {
		return spec, ""
	}
	return name, arg
}

// canonicalForm joins extracted values in key order so two captures of the
// same page produce the same serialized string.
func canonicalForm(raw map[string]string) string {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, key := range keys {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(raw[key])
	}
	return sb.String()
}
