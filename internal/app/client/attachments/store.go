package attachments

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"praxsync/internal/utils/fsutil"
)

var (
	ErrNotFound         = errors.New("attachment not found")
	ErrInvalidID        = errors.New("invalid attachment id")
	ErrChecksumMismatch = errors.New("attachment checksum mismatch")
)

// Store локальное хранилище файлов вложений, по файлу на attachmentId
type Store struct {
	dir string
}

// NewStore создает каталог вложений при необходимости
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога вложений: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.dir, id), nil
}

// Put атомарно записывает содержимое вложения
func (s *Store) Put(id string, data []byte) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(p, data, 0o600); err != nil {
		return fmt.Errorf("ошибка записи вложения %s: %w", id, err)
	}
	return nil
}

// Read возвращает содержимое вложения
func (s *Store) Read(id string) ([]byte, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения вложения %s: %w", id, err)
	}
	return data, nil
}

// Has сообщает, есть ли вложение локально
func (s *Store) Has(id string) bool {
	p, err := s.path(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Checksum шестнадцатеричный sha256 содержимого
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func verify(data []byte, expected string) error {
	if expected == "" {
		return nil
	}
	expected = strings.TrimPrefix(strings.ToLower(expected), "sha256:")
	if got := Checksum(data); got != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, got)
	}
	return nil
}
