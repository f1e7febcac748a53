package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"leaguelingo/internal/domain"
)

// Local сохраняет документы на диск. Используется без S3, ссылки ведут на /media/ API-сервера.
type Local struct {
	dir     string
	baseURL string
}

var _ domain.ObjectStore = (*Local)(nil)

// NewLocal создаёт хранилище в каталоге dir.
func NewLocal(dir, siteURL string) *Local {
	return &Local{dir: dir, baseURL: strings.TrimRight(siteURL, "/") + "/media"}
}

// Dir возвращает корневой каталог.
func (l *Local) Dir() string {
	return l.dir
}

// Save пишет файл и возвращает относительный путь.
func (l *Local) Save(_ context.Context, key string, data []byte) (string, error) {
	key = strings.TrimLeft(path.Clean("/"+key), "/")
	full := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", domain.E(domain.KindDeliveryFailed, "storage.local.save", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", domain.E(domain.KindDeliveryFailed, "storage.local.save", err)
	}
	return key, nil
}

// URL возвращает ссылку на файл.
func (l *Local) URL(location string) string {
	return l.baseURL + "/" + escapePath(location)
}
