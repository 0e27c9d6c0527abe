package archive

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zip"
)

// ============================================================
// Archive Reader
// ============================================================

type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

// Extract достает из архива только перечисленные записи.
// Результат: stem -> содержимое. Отсутствующая запись просто пропускается,
// неизвестные записи архива игнорируются.
func (r *Reader) Extract(data []byte, names []string) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	index := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		if _, seen := index[f.Name]; !seen {
			index[f.Name] = f
		}
	}

	out := make(map[string][]byte, len(names))
	for _, name := range names {
		f, ok := index[name]
		if !ok {
			continue
		}
		content, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		out[Stem(name)] = content
	}
	return out, nil
}

// Load извлекает все известные записи и группирует их по категориям.
func (r *Reader) Load(data []byte) (*Set, error) {
	entries := KnownEntries()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}

	files, err := r.Extract(data, names)
	if err != nil {
		return nil, err
	}

	set := &Set{artifacts: make(map[string]*Artifact, len(files))}
	for _, e := range entries {
		content, ok := files[e.Key()]
		if !ok {
			continue
		}
		set.artifacts[e.Key()] = &Artifact{Entry: e, Data: content}
		set.order = append(set.order, e.Key())
	}
	return set, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ============================================================
// Artifacts
// ============================================================

type Artifact struct {
	Entry
	Data []byte
}

func (a *Artifact) ContentType() string {
	return ContentType(a.Name)
}

// Set извлеченные артефакты одного архива. После Release содержимое недоступно.
type Set struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
	order     []string
	released  bool
}

// Get возвращает артефакт по ключу.
func (s *Set) Get(key string) (*Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.released {
		return nil, false
	}
	a, ok := s.artifacts[key]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}

// Keys ключи в порядке извлечения.
func (s *Set) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.released {
		return nil
	}
	return append([]string(nil), s.order...)
}

// Group артефакты одной категории в порядке извлечения.
func (s *Set) Group(cat Category) []*Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.released {
		return nil
	}
	var out []*Artifact
	for _, key := range s.order {
		if a := s.artifacts[key]; a.Category == cat {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

// Len количество артефактов.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.released {
		return 0
	}
	return len(s.order)
}

// Release освобождает содержимое. Повторный вызов безопасен.
func (s *Set) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.artifacts {
		a.Data = nil
	}
	s.artifacts = nil
	s.order = nil
	s.released = true
}

// Released был ли набор освобожден.
func (s *Set) Released() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.released
}
