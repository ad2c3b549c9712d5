// Package saver implements the pluggable subtitle-output backends the
// pipeline's persist step writes through: one Saver interface with a
// local-disk default and remote backends
// dispatched from configuration, adapted from the filesystem package's
// own protocol-switch (DefaultClientFactory.CreateClient) but narrowed
// from a full read/write/list filesystem client down to the single
// "write one byte stream to one path" operation a subtitle download
// needs.
package saver

import (
	"context"
	"fmt"
)

// Saver writes subtitle content to path on whatever backend it wraps.
// path is already the fully derived on-disk/remote name (the
// "<stem>.<lang-suffix>.<ext>" rule computed by the pipeline), not a
// directory.
type Saver interface {
	Save(ctx context.Context, path string, content []byte) error
}

// NewFromConfig dispatches to a concrete Saver by protocol, mirroring
// filesystem.DefaultClientFactory.CreateClient's switch. "local" (the
// zero value) is the default when protocol is empty.
func NewFromConfig(protocol string, settings map[string]any) (Saver, error) {
	switch protocol {
	case "", "local":
		return NewLocalSaver(settingString(settings, "base_path", "")), nil
	case "s3":
		return NewS3Saver(S3Config{
			Bucket:    settingString(settings, "bucket", ""),
			Region:    settingString(settings, "region", "us-east-1"),
			AccessKey: settingString(settings, "access_key", ""),
			SecretKey: settingString(settings, "secret_key", ""),
			Prefix:    settingString(settings, "prefix", ""),
		})
	case "ftp":
		return NewFTPSaver(FTPConfig{
			Host:     settingString(settings, "host", ""),
			Port:     settingInt(settings, "port", 21),
			Username: settingString(settings, "username", ""),
			Password: settingString(settings, "password", ""),
			BasePath: settingString(settings, "path", ""),
		}), nil
	case "webdav":
		return NewWebDAVSaver(WebDAVConfig{
			URL:      settingString(settings, "url", ""),
			Username: settingString(settings, "username", ""),
			Password: settingString(settings, "password", ""),
		}), nil
	case "smb":
		return NewSMBSaver(SMBConfig{
			Host:     settingString(settings, "host", ""),
			Port:     settingInt(settings, "port", 445),
			Share:    settingString(settings, "share", ""),
			Username: settingString(settings, "username", ""),
			Password: settingString(settings, "password", ""),
			Domain:   settingString(settings, "domain", "WORKGROUP"),
		}), nil
	default:
		return nil, fmt.Errorf("saver: unsupported protocol %q", protocol)
	}
}

func settingString(settings map[string]any, key, def string) string {
	if v, ok := settings[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func settingInt(settings map[string]any, key string, def int) int {
	if v, ok := settings[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return def
}
