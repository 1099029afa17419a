package template_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/template"
)

func TestRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		body         string
		placeholders map[string]string
		want         string
	}{
		{
			name:         "double braces",
			body:         "Hello {{name}}, amount {{amount}}",
			placeholders: map[string]string{"name": "Alice", "amount": "100"},
			want:         "Hello Alice, amount 100",
		},
		{
			name:         "single braces",
			body:         "Slip {slipId} verified",
			placeholders: map[string]string{"slipId": "S-1"},
			want:         "Slip S-1 verified",
		},
		{
			name:         "missing placeholder kept",
			body:         "Hello {{name}}, ref {{ref}}",
			placeholders: map[string]string{"name": "Bob"},
			want:         "Hello Bob, ref {{ref}}",
		},
		{
			name:         "duplicate placeholder",
			body:         "{{name}} and {{name}}",
			placeholders: map[string]string{"name": "Eve"},
			want:         "Eve and Eve",
		},
		{
			name:         "thai",
			body:         "สวัสดี {{name}} ยอดชำระ {{amount}} บาท",
			placeholders: map[string]string{"name": "สมชาย", "amount": "1500"},
			want:         "สวัสดี สมชาย ยอดชำระ 1500 บาท",
		},
		{
			name: "no placeholders",
			body: "plain text",
			want: "plain text",
		},
		{
			name:         "value not expanded again",
			body:         "{{a}}",
			placeholders: map[string]string{"a": "{{b}}", "b": "x"},
			want:         "{{b}}",
		},
		{
			name:         "empty body",
			body:         "",
			placeholders: map[string]string{"a": "1"},
			want:         "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := template.Render(tt.body, tt.placeholders)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, template.Render(tt.body, tt.placeholders))
		})
	}
}

func newEngine(t *testing.T, templates ...template.Template) *template.Engine {
	t.Helper()
	e, err := template.NewEngine(template.NewMemoryStore(templates...))
	require.NoError(t, err)
	return e
}

func TestEngine_GetTemplate(t *testing.T) {
	t.Parallel()

	en := template.Template{Code: "SLIP_VERIFIED", Channel: "email", Language: "en", Subject: "Verified", Body: "Hi {{name}}", IsActive: true}
	th := template.Template{Code: "SLIP_VERIFIED", Channel: "email", Language: "th", Subject: "ยืนยันแล้ว", Body: "สวัสดี {{name}}", IsActive: true}
	inactive := template.Template{Code: "OLD", Channel: "email", Language: "en", Subject: "x", Body: "x", IsActive: false}

	e := newEngine(t, en, th, inactive)
	ctx := context.Background()

	t.Run("exact language", func(t *testing.T) {
		t.Parallel()
		got, err := e.GetTemplate(ctx, "SLIP_VERIFIED", "email", "th")
		require.NoError(t, err)
		assert.Equal(t, "th", got.Language)
	})

	t.Run("base language", func(t *testing.T) {
		t.Parallel()
		got, err := e.GetTemplate(ctx, "SLIP_VERIFIED", "email", "th-TH")
		require.NoError(t, err)
		assert.Equal(t, "th", got.Language)
	})

	t.Run("default language", func(t *testing.T) {
		t.Parallel()
		got, err := e.GetTemplate(ctx, "SLIP_VERIFIED", "email", "ja")
		require.NoError(t, err)
		assert.Equal(t, "en", got.Language)
	})

	t.Run("other channel not found", func(t *testing.T) {
		t.Parallel()
		_, err := e.GetTemplate(ctx, "SLIP_VERIFIED", "sms", "en")
		require.ErrorIs(t, err, template.ErrTemplateNotFound)
	})

	t.Run("inactive not found", func(t *testing.T) {
		t.Parallel()
		_, err := e.GetTemplate(ctx, "OLD", "email", "en")
		require.ErrorIs(t, err, template.ErrTemplateNotFound)
	})
}

func TestEngine_RenderNotificationTemplate(t *testing.T) {
	t.Parallel()

	e := newEngine(t, template.Template{
		Code: "PAYMENT", Channel: "push", Language: "en",
		Subject: "Payment {{status}}", Body: "Order {orderId} is {{status}}", IsActive: true,
	})

	subject, body, err := e.RenderNotificationTemplate(context.Background(), "PAYMENT", "push",
		map[string]string{"status": "paid", "orderId": "42"}, "fr")
	require.NoError(t, err)
	assert.Equal(t, "Payment paid", subject)
	assert.Equal(t, "Order 42 is paid", body)

	_, _, err = e.RenderNotificationTemplate(context.Background(), "MISSING", "push", nil, "en")
	require.ErrorIs(t, err, template.ErrTemplateNotFound)
}

func TestNewEngine_NilStore(t *testing.T) {
	t.Parallel()
	_, err := template.NewEngine(nil)
	require.ErrorIs(t, err, template.ErrStoreRequired)
}

func TestMemoryStore_SaveValidates(t *testing.T) {
	t.Parallel()
	s := template.NewMemoryStore()
	err := s.Save(context.Background(), &template.Template{Code: "X"})
	require.ErrorIs(t, err, template.ErrInvalidTemplate)
}
