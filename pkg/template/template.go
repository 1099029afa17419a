package template

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Template is a stored subject/body pair for one channel and language.
type Template struct {
	ID        uuid.UUID
	Code      string
	Name      string
	Channel   string
	Language  string
	Subject   string
	Body      string
	IsActive  bool
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *Template) validate() error {
	if t.Code == "" || t.Channel == "" || t.Body == "" {
		return ErrInvalidTemplate
	}
	return nil
}

// Store reads and writes templates.
type Store interface {
	// Find returns the active template with exactly this code, channel and
	// language, or ErrTemplateNotFound.
	Find(ctx context.Context, code, channel, language string) (*Template, error)
	// Save inserts or replaces the template with the same code, channel and language.
	Save(ctx context.Context, t *Template) error
}

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}|\{(\w+)\}`)

// Render substitutes {{name}} and {name} tokens with values from
// placeholders. Tokens without a value are kept verbatim. Substituted values
// are not scanned again.
func Render(body string, placeholders map[string]string) string {
	if body == "" || len(placeholders) == 0 {
		return body
	}
	return placeholderPattern.ReplaceAllStringFunc(body, func(token string) string {
		m := placeholderPattern.FindStringSubmatch(token)
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if v, ok := placeholders[name]; ok {
			return v
		}
		return token
	})
}
