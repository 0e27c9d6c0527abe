package models

import "time"

// ============================================================
// Session Model
// ============================================================

// AllowedImageTypes MIME-типы, которые принимает drag-and-drop.
var AllowedImageTypes = []string{"image/jpeg", "image/png"}

// IsAllowedImageType проверяет MIME-тип изображения.
func IsAllowedImageType(contentType string) bool {
	for _, allowed := range AllowedImageTypes {
		if contentType == allowed {
			return true
		}
	}
	return false
}

// SelectedImage метаданные выбранного файла и ссылка на его содержимое в хранилище.
type SelectedImage struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
	LastModified int64  `json:"last_modified"` // unix ms
	Ref          string `json:"-"`
}

// SizeMB размер в мегабайтах для отображения.
func (i *SelectedImage) SizeMB() float64 {
	return float64(i.Size) / 1024 / 1024
}

type NoticeVariant string

const (
	NoticeDefault     NoticeVariant = "default"
	NoticeDestructive NoticeVariant = "destructive"
)

// Notice всплывающее уведомление, показывается один раз.
type Notice struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Variant     NoticeVariant `json:"variant"`
}

// Session контекст между стадиями: одно изображение и не более одного архива.
type Session struct {
	ID         string
	Image      *SelectedImage
	ArchiveRef string
	Thresholds Thresholds
	Notices    []Notice
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewSession создает пустую сессию с порогами по умолчанию.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:         id,
		Thresholds: DefaultThresholds(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// HasArchive есть ли сохраненный результат.
func (s *Session) HasArchive() bool {
	return s.ArchiveRef != ""
}

// Notify добавляет уведомление в очередь.
func (s *Session) Notify(n Notice) {
	s.Notices = append(s.Notices, n)
}

// Reset очищает изображение, архив и пороги ("New Analysis").
func (s *Session) Reset() {
	s.Image = nil
	s.ArchiveRef = ""
	s.Thresholds = DefaultThresholds()
}

// Clone глубокая копия, чтобы хранилища не делили состояние с вызывающим кодом.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Image != nil {
		img := *s.Image
		out.Image = &img
	}
	out.Thresholds = make(Thresholds, len(s.Thresholds))
	for k, v := range s.Thresholds {
		out.Thresholds[k] = v
	}
	out.Notices = append([]Notice(nil), s.Notices...)
	return &out
}
