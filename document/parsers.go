// Package document adapts the teacher's loader/splitter stack
// (document/loader.go, document/markdown_loader.go,
// document/character_splitter.go) into ingest.Parser and ingest.Chunker
// implementations, so the RAG ingestion node can dock plain text,
// Markdown, and JSON content without a dedicated extractor per format.
package document

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kart-io/flowagent/errors"
	"github.com/kart-io/flowagent/flowtypes"
)

// contentString normalizes an AgentContentItem's polymorphic Content field
// (string|[]byte|structured) to a string, the shape every parser here
// works against.
func contentString(item flowtypes.AgentContentItem) (string, bool) {
	switch v := item.Content.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// TextParser handles plain text content types verbatim. Grounded on the
// teacher's BaseDocumentLoader, which likewise does no transformation
// beyond wrapping raw bytes in a Document.
type TextParser struct {
	id       string
	priority int
}

func NewTextParser(id string, priority int) *TextParser {
	return &TextParser{id: id, priority: priority}
}

func (p *TextParser) ID() string    { return p.id }
func (p *TextParser) Priority() int { return p.priority }

func (p *TextParser) Supports(item flowtypes.AgentContentItem) bool {
	switch item.ContentType {
	case "text/plain", "text":
		return true
	default:
		return false
	}
}

func (p *TextParser) Parse(_ context.Context, item flowtypes.AgentContentItem) (flowtypes.AgentParsedContent, error) {
	text, ok := contentString(item)
	if !ok {
		return flowtypes.AgentParsedContent{}, errors.Newf(errors.CodeItemParse, "content for item %s is not string-like", item.ID).
			WithComponent("document.TextParser").WithOperation("Parse").WithItemID(item.ID)
	}
	return flowtypes.AgentParsedContent{Text: text}, nil
}

// MarkdownParser strips Markdown formatting noise before handing the
// remaining prose on to chunking, and lifts the first level-1 heading into
// metadata["title"]. By default only lines containing images are dropped;
// RemoveLinks keeps link labels and drops their targets, and RemoveCodeFmt
// deletes backtick characters while keeping the code text itself. Ported from the teacher's
// MarkdownLoader.processMarkdown/extractTitle.
type MarkdownParser struct {
	id            string
	priority      int
	RemoveImages  bool
	RemoveLinks   bool
	RemoveCodeFmt bool
}

func NewMarkdownParser(id string, priority int) *MarkdownParser {
	return &MarkdownParser{id: id, priority: priority, RemoveImages: true, RemoveLinks: false, RemoveCodeFmt: false}
}

func (p *MarkdownParser) ID() string    { return p.id }
func (p *MarkdownParser) Priority() int { return p.priority }

func (p *MarkdownParser) Supports(item flowtypes.AgentContentItem) bool {
	switch item.ContentType {
	case "text/markdown", "markdown", "md":
		return true
	default:
		return false
	}
}

func (p *MarkdownParser) Parse(_ context.Context, item flowtypes.AgentContentItem) (flowtypes.AgentParsedContent, error) {
	text, ok := contentString(item)
	if !ok {
		return flowtypes.AgentParsedContent{}, errors.Newf(errors.CodeItemParse, "content for item %s is not string-like", item.ID).
			WithComponent("document.MarkdownParser").WithOperation("Parse").WithItemID(item.ID)
	}

	processed := text
	if p.RemoveImages {
		processed = removeMarkdownImages(processed)
	}
	if p.RemoveLinks {
		processed = removeMarkdownLinks(processed)
	}
	if p.RemoveCodeFmt {
		processed = removeMarkdownCodeFormatting(processed)
	}

	meta := map[string]interface{}{}
	if title := extractMarkdownTitle(text); title != "" {
		meta["title"] = title
	}

	return flowtypes.AgentParsedContent{Text: processed, Metadata: meta}, nil
}

func extractMarkdownTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimPrefix(line, "# ")
		}
	}
	return ""
}

func removeMarkdownImages(text string) string {
	lines := strings.Split(text, "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		if !strings.Contains(line, "![") {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}

func removeMarkdownLinks(text string) string {
	result := text
	for {
		start := strings.Index(result, "[")
		if start == -1 {
			break
		}
		mid := strings.Index(result[start:], "](")
		if mid == -1 {
			break
		}
		mid += start
		end := strings.Index(result[mid:], ")")
		if end == -1 {
			break
		}
		end += mid
		label := result[start+1 : mid]
		result = result[:start] + label + result[end+1:]
	}
	return result
}

func removeMarkdownCodeFormatting(text string) string {
	result := strings.ReplaceAll(text, "```", "")
	result = strings.ReplaceAll(result, "`", "")
	return result
}

// JSONParser extracts a configured content field (default "content") from
// a JSON object item, carrying the remaining configured keys through as
// metadata. Grounded on the teacher's JSONLoader.
type JSONParser struct {
	id           string
	priority     int
	ContentKey   string
	MetadataKeys []string
}

func NewJSONParser(id string, priority int) *JSONParser {
	return &JSONParser{id: id, priority: priority, ContentKey: "content"}
}

func (p *JSONParser) ID() string    { return p.id }
func (p *JSONParser) Priority() int { return p.priority }

func (p *JSONParser) Supports(item flowtypes.AgentContentItem) bool {
	switch item.ContentType {
	case "application/json", "json":
		return true
	default:
		return false
	}
}

func (p *JSONParser) Parse(_ context.Context, item flowtypes.AgentContentItem) (flowtypes.AgentParsedContent, error) {
	raw, ok := contentString(item)
	if !ok {
		return flowtypes.AgentParsedContent{}, errors.Newf(errors.CodeItemParse, "content for item %s is not string-like", item.ID).
			WithComponent("document.JSONParser").WithOperation("Parse").WithItemID(item.ID)
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return flowtypes.AgentParsedContent{}, errors.Wrapf(err, errors.CodeItemParse, "invalid JSON for item %s", item.ID).
			WithComponent("document.JSONParser").WithOperation("Parse").WithItemID(item.ID)
	}

	contentKey := p.ContentKey
	if contentKey == "" {
		contentKey = "content"
	}
	text, _ := obj[contentKey].(string)

	meta := map[string]interface{}{}
	for _, key := range p.MetadataKeys {
		if v, ok := obj[key]; ok {
			meta[key] = v
		}
	}

	return flowtypes.AgentParsedContent{Text: text, Metadata: meta, Structured: obj}, nil
}
