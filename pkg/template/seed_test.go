package template_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipverify/notifier/pkg/template"
)

func TestParseSeed(t *testing.T) {
	t.Parallel()

	t.Run("defaults applied", func(t *testing.T) {
		t.Parallel()
		templates, err := template.ParseSeed([]byte(`
templates:
  - code: slip_verified
    channel: EMAIL
    subject: "Slip {{slipId}}"
    body: "Verified {{amount}}"
    metadata:
      category: slip
  - code: slip_verified
    channel: sms
    language: TH
    body: "ok"
    active: false
`))
		require.NoError(t, err)
		require.Len(t, templates, 2)

		assert.Equal(t, "email", templates[0].Channel)
		assert.Equal(t, template.DefaultLanguage, templates[0].Language)
		assert.Equal(t, "slip_verified", templates[0].Name)
		assert.True(t, templates[0].IsActive)
		assert.Equal(t, "slip", templates[0].Metadata["category"])

		assert.Equal(t, "th", templates[1].Language)
		assert.False(t, templates[1].IsActive)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()
		_, err := template.ParseSeed([]byte("templates: [unclosed"))
		assert.ErrorIs(t, err, template.ErrInvalidSeed)
	})

	t.Run("missing body", func(t *testing.T) {
		t.Parallel()
		_, err := template.ParseSeed([]byte("templates:\n  - code: x\n    channel: email\n"))
		assert.ErrorIs(t, err, template.ErrInvalidSeed)
		assert.ErrorIs(t, err, template.ErrInvalidTemplate)
	})
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	templates, err := template.Defaults()
	require.NoError(t, err)
	require.NotEmpty(t, templates)

	store := template.NewMemoryStore(templates...)
	engine, err := template.NewEngine(store)
	require.NoError(t, err)

	subject, body, err := engine.RenderNotificationTemplate(context.Background(), "slip_processed", "chat_push",
		map[string]string{"slipId": "S-9", "processingType": "OCR"}, "th-TH")
	require.NoError(t, err)
	assert.Equal(t, "สลิป S-9", subject)
	assert.Contains(t, body, "OCR")

	_, body, err = engine.RenderNotificationTemplate(context.Background(), "report_ready", "email",
		map[string]string{"reportId": "R-1", "reportType": "monthly"}, "en")
	require.NoError(t, err)
	assert.Equal(t, "Report R-1 (monthly) is ready to download.", body)
}

func TestSeedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
templates:
  - code: welcome
    channel: email
    subject: Welcome
    body: Hello {{name}}
`), 0o600))

	store := template.NewMemoryStore()
	n, err := template.SeedFile(context.Background(), store, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Find(context.Background(), "welcome", "email", template.DefaultLanguage)
	require.NoError(t, err)
	assert.Equal(t, "Hello {{name}}", got.Body)

	_, err = template.SeedFile(context.Background(), store, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = template.Seed(context.Background(), nil, nil)
	assert.ErrorIs(t, err, template.ErrStoreRequired)
}
