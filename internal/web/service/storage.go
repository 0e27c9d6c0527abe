package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ============================================================
// File Storage
// ============================================================

var ErrInvalidRef = errors.New("invalid storage reference")

// FileStorage хранит бинарное содержимое сессии: исходное изображение и текущий архив.
// Ссылка (ref) всегда относительна корню: "<sessionID>/<file>".
type FileStorage struct {
	root string
}

func NewFileStorage(root string) *FileStorage {
	return &FileStorage{root: root}
}

func (s *FileStorage) SessionDir(sessionID string) string {
	return filepath.Join(s.root, sessionID)
}

func (s *FileStorage) EnsureDir(sessionID string) error {
	if err := os.MkdirAll(s.SessionDir(sessionID), 0o755); err != nil {
		return fmt.Errorf("mkdir session dir: %w", err)
	}
	return nil
}

// SaveImage сохраняет исходное изображение, заменяя предыдущее.
func (s *FileStorage) SaveImage(sessionID, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 6 {
		ext = ".bin"
	}
	return s.save(sessionID, "image"+ext, data)
}

// SaveArchive сохраняет архив под новым уникальным именем.
// Предыдущий архив удаляет вызывающий код после фиксации новой ссылки.
func (s *FileStorage) SaveArchive(sessionID string, data []byte) (string, error) {
	return s.save(sessionID, "result-"+uuid.NewString()+".zip", data)
}

func (s *FileStorage) Read(ref string) ([]byte, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Remove удаляет объект; отсутствие файла не ошибка.
func (s *FileStorage) Remove(ref string) error {
	if ref == "" {
		return nil
	}
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", ref, err)
	}
	return nil
}

// RemoveSession удаляет всю папку сессии.
func (s *FileStorage) RemoveSession(sessionID string) error {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || sessionID == "." || sessionID == ".." {
		return ErrInvalidRef
	}
	if err := os.RemoveAll(s.SessionDir(sessionID)); err != nil {
		return fmt.Errorf("remove session dir: %w", err)
	}
	return nil
}

func (s *FileStorage) save(sessionID, name string, data []byte) (string, error) {
	ref := sessionID + "/" + name
	path, err := s.resolve(ref)
	if err != nil {
		return "", err
	}
	if err := s.EnsureDir(sessionID); err != nil {
		return "", err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit %s: %w", name, err)
	}
	return ref, nil
}

// resolve проверяет ссылку: ровно два сегмента, без выхода за корень.
func (s *FileStorage) resolve(ref string) (string, error) {
	parts := strings.Split(ref, "/")
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.Contains(p, `\`) {
			return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
		}
	}
	return filepath.Join(s.root, parts[0], parts[1]), nil
}
