package knowledge

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"
)

type fileEntry struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Category string `yaml:"category"`
	Content  string `yaml:"content"`
	// HTML is flattened to text and used when Content is empty.
	HTML string `yaml:"html"`
}

type fileFormat struct {
	Documents []fileEntry `yaml:"documents"`
}

var whitespace = regexp.MustCompile(`\s+`)

// LoadFile reads documents from a YAML file of the form {documents: [{id, title, category,
// content | html}]}.
func LoadFile(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) ([]Document, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge file: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Documents))
	docs := make([]Document, 0, len(f.Documents))
	for i, e := range f.Documents {
		if e.ID == "" {
			return nil, fmt.Errorf("document %d: id is required", i)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("document %q: duplicate id", e.ID)
		}
		seen[e.ID] = struct{}{}

		content := strings.TrimSpace(e.Content)
		if content == "" && e.HTML != "" {
			text, err := htmlToText(e.HTML)
			if err != nil {
				return nil, fmt.Errorf("document %q: %w", e.ID, err)
			}
			content = text
		}
		if content == "" {
			return nil, fmt.Errorf("document %q: content is empty", e.ID)
		}

		category := strings.ToLower(strings.TrimSpace(e.Category))
		if category == "" {
			category = "general"
		}

		docs = append(docs, Document{
			ID:       e.ID,
			Title:    strings.TrimSpace(e.Title),
			Content:  content,
			Category: category,
		})
	}

	return docs, nil
}

func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, nav, header, footer").Remove()
	// keep words in adjacent block elements apart
	doc.Find("body *").AppendHtml(" ")

	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " ")), nil
}
