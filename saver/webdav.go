package saver

import (
	"bytes"
	"context"
	"fmt"

	"github.com/studio-b12/gowebdav"
)

// WebDAVConfig configures a WebDAVSaver.
type WebDAVConfig struct {
	URL      string
	Username string
	Password string
}

// WebDAVSaver writes subtitle content over WebDAV via gowebdav rather
// than re-deriving PROPFIND/PUT framing over net/http by hand.
type WebDAVSaver struct {
	client *gowebdav.Client
}

// NewWebDAVSaver returns a WebDAVSaver bound to cfg.
func NewWebDAVSaver(cfg WebDAVConfig) *WebDAVSaver {
	return &WebDAVSaver{client: gowebdav.NewClient(cfg.URL, cfg.Username, cfg.Password)}
}

func (s *WebDAVSaver) Save(_ context.Context, path string, content []byte) error {
	if err := s.client.WriteStream(path, bytes.NewReader(content), 0o644); err != nil {
		return fmt.Errorf("saver: write webdav file %s: %w", path, err)
	}
	return nil
}
