package saver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"

	"github.com/hirochachacha/go-smb2"
)

// SMBConfig configures an SMBSaver, mirroring filesystem.SmbConfig's
// field set.
type SMBConfig struct {
	Host     string
	Port     int
	Share    string
	Username string
	Password string
	Domain   string
}

// SMBSaver dials a fresh SMB session per Save call and stores content
// on Share, grounded on filesystem.SmbClient (Connect via NTLM, then
// Share.Create + io.Copy).
type SMBSaver struct {
	cfg SMBConfig
}

// NewSMBSaver returns an SMBSaver for cfg.
func NewSMBSaver(cfg SMBConfig) *SMBSaver {
	return &SMBSaver{cfg: cfg}
}

func (s *SMBSaver) Save(_ context.Context, path string, content []byte) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("saver: connect to smb server %s: %w", addr, err)
	}
	defer conn.Close()

	d := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     s.cfg.Username,
			Password: s.cfg.Password,
			Domain:   s.cfg.Domain,
		},
	}
	session, err := d.Dial(conn)
	if err != nil {
		return fmt.Errorf("saver: smb session: %w", err)
	}
	defer session.Logoff()

	share, err := session.Mount(s.cfg.Share)
	if err != nil {
		return fmt.Errorf("saver: mount smb share %s: %w", s.cfg.Share, err)
	}
	defer share.Umount()

	file, err := share.Create(path)
	if err != nil {
		return fmt.Errorf("saver: create smb file %s: %w", path, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("saver: write smb file %s: %w", path, err)
	}
	return nil
}
