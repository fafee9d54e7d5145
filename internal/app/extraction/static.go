package extraction

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/zephis-org/zephis-core/internal/app/template"
	"github.com/zephis-org/zephis-core/pkg/logger"
)

// StaticExtractor runs template extractor specs against already-captured
// content. It performs no navigation or scripting; the capture layer is
// responsible for producing the document.
type StaticExtractor struct {
	log *logger.Logger
}

func NewStaticExtractor() *StaticExtractor {
	return &StaticExtractor{log: logger.Default()}
}

// Extract applies every extractor the template defines. All extractors must
// succeed; a claim proven over partially extracted data would silently bind
// to the wrong value.
func (e *StaticExtractor) Extract(ctx context.Context, tmpl *template.Template, content string, pageURL string) (*ExtractedData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !tmpl.MatchesURL(pageURL) {
		return nil, fmt.Errorf("url %q does not match template %s", pageURL, tmpl.Key())
	}

	raw := make(map[string]string, len(tmpl.Extractors))
	for name, spec := range tmpl.Extractors {
		value, err := e.runSpec(tmpl, spec, content)
		if err != nil {
			return nil, fmt.Errorf("extractor %q: %w", name, err)
		}
		raw[name] = value
	}

	e.log.Debugf("extracted %d values from %s", len(raw), tmpl.Key())

	return &ExtractedData{
		Raw:       raw,
		Processed: canonicalForm(raw),
		Timestamp: time.Now().UTC(),
		URL:       pageURL,
		Domain:    domainOf(pageURL, tmpl.Domain),
	}, nil
}

func (e *StaticExtractor) runSpec(tmpl *template.Template, spec, content string) (string, error) {
	name, arg := parseSpec(spec)
	prim, ok := primitives[name]
	if !ok {
		return "", fmt.Errorf("unknown extractor primitive %q", name)
	}
	// Selector names from the template's selector table are dereferenced so
	// specs can say "number:balance" instead of repeating the raw selector.
	if resolved, ok := tmpl.Selectors[arg]; ok {
		arg = resolved
	}
	return prim(content, arg)
}

func domainOf(pageURL, fallback string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Hostname() == "" {
		return fallback
	}
	return parsed.Hostname()
}
