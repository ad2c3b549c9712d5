package saver

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTPConfig configures an FTPSaver, mirroring
// filesystem.FTPConfig's field set.
type FTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	BasePath string
}

// FTPSaver dials a fresh FTP connection per Save call and stores
// content at BasePath/path, grounded on filesystem.FTPClient.WriteFile
// (connect, mkdir best-effort, STOR).
type FTPSaver struct {
	cfg FTPConfig
}

// NewFTPSaver returns an FTPSaver for cfg.
func NewFTPSaver(cfg FTPConfig) *FTPSaver {
	return &FTPSaver{cfg: cfg}
}

func (s *FTPSaver) resolvePath(path string) string {
	if s.cfg.BasePath != "" {
		return s.cfg.BasePath + "/" + path
	}
	return path
}

func (s *FTPSaver) Save(ctx context.Context, path string, content []byte) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("saver: connect to ftp server %s: %w", addr, err)
	}
	defer conn.Quit()

	if err := conn.Login(s.cfg.Username, s.cfg.Password); err != nil {
		return fmt.Errorf("saver: ftp login: %w", err)
	}

	fullPath := s.resolvePath(path)
	if dir := filepath.Dir(fullPath); dir != "." && dir != "/" {
		_ = conn.MakeDir(dir) // ignored: FTP has no portable directory-exists check
	}

	if err := conn.Stor(fullPath, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("saver: store ftp file %s: %w", fullPath, err)
	}
	return nil
}
