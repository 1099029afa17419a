package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mrz1836/postmark"
)

// DevSender writes emails to a directory instead of sending them. Each
// email produces an .html body and a .json metadata file.
type DevSender struct {
	dir string
	now func() time.Time
}

// NewDevSender creates a sender writing to dir. The directory is created on
// first use.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir, now: time.Now}
}

type devEmailMetadata struct {
	MessageID string `json:"message_id"`
	Timestamp string `json:"timestamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	Cc        string `json:"cc,omitempty"`
	Bcc       string `json:"bcc,omitempty"`
	Subject   string `json:"subject"`
	Tag       string `json:"tag,omitempty"`
}

func (d *DevSender) SendEmail(_ context.Context, email postmark.Email) (postmark.EmailResponse, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return postmark.EmailResponse{}, fmt.Errorf("create email directory: %w", err)
	}

	now := d.now()
	id := uuid.NewString()
	identifier := email.Tag
	if identifier == "" {
		identifier = email.Subject
	}
	base := fmt.Sprintf("%s_%s_%s", now.Format("2006_01_02_150405"), sanitizeFilename(identifier), id[:8])

	if err := os.WriteFile(filepath.Join(d.dir, base+".html"), []byte(email.HTMLBody), 0o644); err != nil {
		return postmark.EmailResponse{}, fmt.Errorf("write email body: %w", err)
	}

	meta, err := json.MarshalIndent(devEmailMetadata{
		MessageID: id,
		Timestamp: now.Format(time.RFC3339),
		From:      email.From,
		To:        email.To,
		Cc:        email.Cc,
		Bcc:       email.Bcc,
		Subject:   email.Subject,
		Tag:       email.Tag,
	}, "", "  ")
	if err != nil {
		return postmark.EmailResponse{}, fmt.Errorf("encode email metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, base+".json"), meta, 0o644); err != nil {
		return postmark.EmailResponse{}, fmt.Errorf("write email metadata: %w", err)
	}

	return postmark.EmailResponse{MessageID: id}, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = unsafeFilenameChars.ReplaceAllString(s, "")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "email"
	}
	return strings.ToLower(s)
}
