package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrNotDataURL = errors.New("not a data url")

// Store persists binary objects and returns their public URL.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

var extByMime = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

type DataURL struct {
	ContentType string
	Ext         string
	Data        []byte
}

func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// ParseDataURL decodes "data:image/png;base64,....". Only base64 image
// payloads are accepted.
func ParseDataURL(s string) (*DataURL, error) {
	if !IsDataURL(s) {
		return nil, ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("data url: missing payload")
	}
	mime, enc, _ := strings.Cut(meta, ";")
	if enc != "base64" {
		return nil, fmt.Errorf("data url: only base64 encoding is supported")
	}
	ext, ok := extByMime[strings.ToLower(mime)]
	if !ok {
		return nil, fmt.Errorf("data url: unsupported content type %q", mime)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("data url: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("data url: empty payload")
	}
	return &DataURL{ContentType: strings.ToLower(mime), Ext: ext, Data: data}, nil
}
