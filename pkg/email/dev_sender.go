package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DevSender writes emails to disk instead of delivering them, so local
// development works without Postmark credentials. Each email becomes an
// .html file next to a .json metadata file.
type DevSender struct {
	dir string
}

// NewDevSender creates a file-backed Sender writing into dir.
func NewDevSender(dir string) *DevSender {
	return &DevSender{dir: dir}
}

var unsafeFilename = regexp.MustCompile(`[^a-z0-9_-]+`)

func (d *DevSender) SendEmail(_ context.Context, params SendParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToSend, err)
	}

	name := params.Tag
	if name == "" {
		name = params.Subject
	}
	name = unsafeFilename.ReplaceAllString(strings.ToLower(name), "_")
	base := filepath.Join(d.dir, time.Now().Format("2006_01_02_150405")+"_"+name)

	if err := os.WriteFile(base+".html", []byte(params.BodyHTML), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToSend, err)
	}

	meta, err := json.MarshalIndent(map[string]string{
		"send_to": params.SendTo,
		"subject": params.Subject,
		"tag":     params.Tag,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToSend, err)
	}
	if err := os.WriteFile(base+".json", meta, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToSend, err)
	}
	return nil
}
