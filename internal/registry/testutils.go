package registry

import (
	"encoding/json"
	"fmt"
	"maps"
)

// SourceConfigOption is a function that configures a source configuration for testing
type SourceConfigOption func(map[string]any)

// DocumentOption is a function that configures a registry document for testing
type DocumentOption func(Document)

// NewTestDocument creates a registry document for testing and applies any provided options
func NewTestDocument(opts ...DocumentOption) Document {
	doc := Document{}
	for _, opt := range opts {
		opt(doc)
	}
	return doc
}

// WithSource adds a source entry to the document
func WithSource(id string, config json.RawMessage) DocumentOption {
	return func(doc Document) {
		doc[id] = config
	}
}

// NewTestSourceConfig creates a source configuration shaped like the ones the
// aggregation service reads, with default values and any provided options applied
func NewTestSourceConfig(name string, opts ...SourceConfigOption) json.RawMessage {
	cfg := map[string]any{
		"name":     name,
		"column":   "tech",
		"home":     "https://example.com",
		"color":    "blue",
		"interval": 600000,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal test source config: %v", err))
	}
	return data
}

// WithHome sets the home page of the source
func WithHome(home string) SourceConfigOption {
	return func(cfg map[string]any) {
		cfg["home"] = home
	}
}

// WithColumn sets the column the source is shown in
func WithColumn(column string) SourceConfigOption {
	return func(cfg map[string]any) {
		cfg["column"] = column
	}
}

// WithInterval sets the refresh interval in milliseconds
func WithInterval(ms int) SourceConfigOption {
	return func(cfg map[string]any) {
		cfg["interval"] = ms
	}
}

// WithFields merges arbitrary fields into the configuration
func WithFields(fields map[string]any) SourceConfigOption {
	return func(cfg map[string]any) {
		maps.Copy(cfg, fields)
	}
}

// NewTestModule returns the text of a minimal extraction module for id
func NewTestModule(id string) string {
	return fmt.Sprintf(`import * as cheerio from "cheerio"

export default defineSource(async () => {
  const html: any = await myFetch("https://example.com/%[1]s")
  const $ = cheerio.load(html)
  return $("article a").toArray().map((el) => {
    const $el = $(el)
    const url = $el.attr("href")!
    return { id: url, title: $el.text().trim(), url }
  })
})
`, id)
}
