package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"structify/internal/web/archive"
	"structify/internal/web/backend"
	"structify/internal/web/models"
	"structify/internal/web/repository"

	"go.uber.org/zap"
)

// ============================================================
// Pipeline: Upload -> Processing -> Results
// ============================================================

var (
	ErrNoImage    = errors.New("no image selected")
	ErrNoArchive  = errors.New("no result archive")
	ErrNoArtifact = errors.New("artifact not in archive")
	ErrBusy       = errors.New("request already in flight")
	ErrExtraction = errors.New("failed to load results")

	errSuperseded = errors.New("result superseded")
)

// Processor удаленная обработка изображения (backend.Client).
type Processor interface {
	Process(ctx context.Context, img backend.Image, thresholds models.Thresholds) ([]byte, error)
}

type PhaseMode string

const (
	// PhaseModeSequential сначала вся анимация фаз, затем запрос.
	PhaseModeSequential PhaseMode = "sequential"
	// PhaseModeConcurrent анимация и запрос параллельно, ждем оба.
	PhaseModeConcurrent PhaseMode = "concurrent"
)

type Options struct {
	PhaseDwell time.Duration
	PhaseMode  PhaseMode

	// ArtifactTTL простой, после которого Sweep освобождает артефакты сессии (0 - никогда).
	ArtifactTTL time.Duration
	// JobRetention сколько завершенная задача ждет показа результата (0 - до первого Sweep).
	JobRetention time.Duration
}

type Pipeline struct {
	store     repository.Store
	storage   *FileStorage
	processor Processor
	reader    *archive.Reader
	artifacts *ArtifactCache
	opts      Options
	log       *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	jobs    map[string]*Job
	applies map[string]*inflight
}

type inflight struct {
	cancel context.CancelFunc
}

func New(store repository.Store, storage *FileStorage, processor Processor, opts Options, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.PhaseMode == "" {
		opts.PhaseMode = PhaseModeSequential
	}
	p := &Pipeline{
		store:     store,
		storage:   storage,
		processor: processor,
		reader:    archive.NewReader(),
		artifacts: NewArtifactCache(opts.ArtifactTTL),
		opts:      opts,
		log:       log.With(zap.String("component", "pipeline")),
		now:       time.Now,
		jobs:      make(map[string]*Job),
		applies:   make(map[string]*inflight),
	}
	p.artifacts.now = func() time.Time { return p.now() }
	return p
}

// Session возвращает текущее состояние сессии.
func (p *Pipeline) Session(ctx context.Context, sessionID string) (*models.Session, error) {
	return p.store.Get(ctx, sessionID)
}

// ============================================================
// Upload Stage
// ============================================================

type UploadSource string

const (
	SourceDrop   UploadSource = "drop"
	SourcePicker UploadSource = "picker"
)

type Upload struct {
	Name         string
	ContentType  string
	LastModified int64
	Data         []byte
	Source       UploadSource
}

// SelectImage запоминает выбранный файл.
// Drag-and-drop с неподдерживаемым типом молча игнорируется (false, nil);
// выбор через диалог повторно не проверяется.
func (p *Pipeline) SelectImage(ctx context.Context, sessionID string, up Upload) (bool, error) {
	if up.Source == SourceDrop && !models.IsAllowedImageType(up.ContentType) {
		p.log.Debug("drop ignored", zap.String("session", sessionID), zap.String("type", up.ContentType))
		return false, nil
	}

	ref, err := p.storage.SaveImage(sessionID, up.Name, up.Data)
	if err != nil {
		return false, fmt.Errorf("save image: %w", err)
	}

	lastModified := up.LastModified
	if lastModified <= 0 {
		lastModified = p.now().UnixMilli()
	}

	var previous string
	_, err = p.store.Update(ctx, sessionID, func(s *models.Session) error {
		if s.Image != nil {
			previous = s.Image.Ref
		}
		s.Image = &models.SelectedImage{
			Name:         up.Name,
			Size:         int64(len(up.Data)),
			Type:         up.ContentType,
			LastModified: lastModified,
			Ref:          ref,
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if previous != "" && previous != ref {
		p.removeBlob(previous)
	}

	p.log.Info("image selected",
		zap.String("session", sessionID),
		zap.String("filename", up.Name),
		zap.String("type", up.ContentType),
		zap.Int("bytes", len(up.Data)))
	return true, nil
}

// ClearImage снимает выбор изображения.
func (p *Pipeline) ClearImage(ctx context.Context, sessionID string) error {
	var previous string
	_, err := p.store.Update(ctx, sessionID, func(s *models.Session) error {
		if s.Image != nil {
			previous = s.Image.Ref
		}
		s.Image = nil
		return nil
	})
	if err != nil {
		return err
	}
	p.removeBlob(previous)
	return nil
}

// Image возвращает метаданные и содержимое выбранного изображения.
func (p *Pipeline) Image(ctx context.Context, sessionID string) (*models.SelectedImage, []byte, error) {
	sess, err := p.store.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return p.loadImage(sess)
}

func (p *Pipeline) loadImage(sess *models.Session) (*models.SelectedImage, []byte, error) {
	if sess.Image == nil {
		return nil, nil, ErrNoImage
	}
	data, err := p.storage.Read(sess.Image.Ref)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	return sess.Image, data, nil
}

// ============================================================
// Notices
// ============================================================

// Notify кладет уведомление в очередь сессии.
func (p *Pipeline) Notify(ctx context.Context, sessionID string, n models.Notice) error {
	_, err := p.store.Update(ctx, sessionID, func(s *models.Session) error {
		s.Notify(n)
		return nil
	})
	return err
}

// PopNotices забирает и очищает очередь уведомлений.
func (p *Pipeline) PopNotices(ctx context.Context, sessionID string) ([]models.Notice, error) {
	var notices []models.Notice
	_, err := p.store.Update(ctx, sessionID, func(s *models.Session) error {
		notices = s.Notices
		s.Notices = nil
		return nil
	})
	return notices, err
}

// ============================================================
// New Analysis
// ============================================================

// NewAnalysis отменяет незавершенные запросы, освобождает артефакты
// и очищает изображение, архив и пороги.
func (p *Pipeline) NewAnalysis(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	if job, ok := p.jobs[sessionID]; ok {
		job.Cancel()
		delete(p.jobs, sessionID)
	}
	if a, ok := p.applies[sessionID]; ok {
		a.cancel()
		delete(p.applies, sessionID)
	}
	p.mu.Unlock()

	p.artifacts.Release(sessionID)

	_, err := p.store.Update(ctx, sessionID, func(s *models.Session) error {
		s.Reset()
		return nil
	})
	if err != nil {
		return err
	}

	if err := p.storage.RemoveSession(sessionID); err != nil {
		p.log.Warn("failed to remove session blobs", zap.String("session", sessionID), zap.Error(err))
	}
	p.log.Info("session cleared", zap.String("session", sessionID))
	return nil
}

// commitArchive сохраняет новый архив и заменяет ссылку в сессии.
// current проверяется под p.mu, чтобы отмененный запрос не записал результат.
func (p *Pipeline) commitArchive(ctx context.Context, sessionID string, current func() bool, data []byte, mutate func(*models.Session)) error {
	ref, err := p.storage.SaveArchive(sessionID, data)
	if err != nil {
		return fmt.Errorf("save archive: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !current() {
		p.removeBlob(ref)
		return errSuperseded
	}

	var previous string
	_, err = p.store.Update(ctx, sessionID, func(s *models.Session) error {
		previous = s.ArchiveRef
		s.ArchiveRef = ref
		mutate(s)
		return nil
	})
	if err != nil {
		p.removeBlob(ref)
		return err
	}

	p.artifacts.Release(sessionID)
	if previous != "" && previous != ref {
		p.removeBlob(previous)
	}
	p.log.Info("archive stored", zap.String("session", sessionID), zap.String("ref", ref), zap.Int("bytes", len(data)))
	return nil
}

// ============================================================
// Janitor
// ============================================================

// Sweep освобождает артефакты простаивающих сессий и забывает завершенные задачи,
// результат которых так и не был показан.
func (p *Pipeline) Sweep() (sets, jobs int) {
	sets = p.artifacts.Sweep()

	cutoff := p.now().Add(-p.opts.JobRetention)
	p.mu.Lock()
	for sessionID, job := range p.jobs {
		if job.finishedBefore(cutoff) {
			delete(p.jobs, sessionID)
			jobs++
		}
	}
	p.mu.Unlock()

	if sets > 0 || jobs > 0 {
		p.log.Debug("sweep", zap.Int("artifact_sets", sets), zap.Int("jobs", jobs))
	}
	return sets, jobs
}

// RunJanitor вызывает Sweep каждые interval до отмены ctx.
func (p *Pipeline) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Sweep()
		}
	}
}

func (p *Pipeline) removeBlob(ref string) {
	if ref == "" {
		return
	}
	if err := p.storage.Remove(ref); err != nil {
		p.log.Warn("failed to remove blob", zap.String("ref", ref), zap.Error(err))
	}
}
