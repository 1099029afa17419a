package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"

	"github.com/slipverify/notifier/pkg/logger"
)

// DefaultLanguage is used when neither the requested language nor its base
// language has a template.
const DefaultLanguage = "en"

// Engine looks up and renders templates.
type Engine struct {
	store           Store
	defaultLanguage string
	logger          *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaultLanguage overrides DefaultLanguage.
func WithDefaultLanguage(lang string) Option {
	return func(e *Engine) {
		if lang != "" {
			e.defaultLanguage = lang
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine over store.
func NewEngine(store Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	e := &Engine{
		store:           store,
		defaultLanguage: DefaultLanguage,
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(logger.Component("template"))
	return e, nil
}

// RenderTemplate is Render bound to the engine.
func (e *Engine) RenderTemplate(body string, placeholders map[string]string) string {
	return Render(body, placeholders)
}

// GetTemplate returns the best template for language, falling back to the
// base language and then the default language.
func (e *Engine) GetTemplate(ctx context.Context, code, channel, lang string) (*Template, error) {
	for _, candidate := range e.languages(lang) {
		t, err := e.store.Find(ctx, code, channel, candidate)
		if err == nil {
			if candidate != lang {
				e.logger.DebugContext(ctx, "template language fallback",
					slog.String("code", code),
					slog.String("requested", lang),
					slog.String("used", candidate),
				)
			}
			return t, nil
		}
		if !errors.Is(err, ErrTemplateNotFound) {
			return nil, fmt.Errorf("find template %q: %w", code, err)
		}
	}
	return nil, fmt.Errorf("%w: code=%q channel=%q language=%q", ErrTemplateNotFound, code, channel, lang)
}

// RenderNotificationTemplate renders the subject and body of a template.
func (e *Engine) RenderNotificationTemplate(ctx context.Context, code, channel string, placeholders map[string]string, lang string) (string, string, error) {
	t, err := e.GetTemplate(ctx, code, channel, lang)
	if err != nil {
		return "", "", err
	}
	return Render(t.Subject, placeholders), Render(t.Body, placeholders), nil
}

// languages lists lookup candidates in order without duplicates.
func (e *Engine) languages(lang string) []string {
	out := make([]string, 0, 3)
	add := func(l string) {
		if l == "" {
			return
		}
		for _, seen := range out {
			if strings.EqualFold(seen, l) {
				return
			}
		}
		out = append(out, l)
	}

	add(lang)
	if tag, err := language.Parse(lang); err == nil {
		add(tag.String())
		if base, conf := tag.Base(); conf != language.No {
			add(base.String())
		}
	}
	add(e.defaultLanguage)
	return out
}
