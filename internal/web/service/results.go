package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"structify/internal/web/archive"
	"structify/internal/web/backend"
	"structify/internal/web/models"

	"go.uber.org/zap"
)

// ============================================================
// Results Stage
// ============================================================

var (
	noticeThresholdsApplied = models.Notice{
		Title:       "Thresholds Applied",
		Description: "Results updated with new threshold values.",
		Variant:     models.NoticeDefault,
	}
	noticeThresholdsFailed = models.Notice{
		Title:       "Threshold Update Failed",
		Description: "Could not apply new thresholds",
		Variant:     models.NoticeDestructive,
	}
	noticeImageMissing = models.Notice{
		Title:       "Error",
		Description: "Original image not found. Please start over.",
		Variant:     models.NoticeDestructive,
	}
	noticeBusy = models.Notice{
		Title:       "Please wait",
		Description: "Thresholds are already being applied.",
		Variant:     models.NoticeDefault,
	}
)

// Results извлекает артефакты текущего архива сессии.
// Без архива возвращает ErrNoArchive; ошибка разбора оборачивается в ErrExtraction.
// Если архив заменили между чтением сессии и загрузкой, сессия читается повторно.
func (p *Pipeline) Results(ctx context.Context, sessionID string) (*models.Session, *archive.Set, error) {
	for attempt := 0; ; attempt++ {
		sess, err := p.store.Get(ctx, sessionID)
		if err != nil {
			return nil, nil, err
		}
		if !sess.HasArchive() {
			return sess, nil, ErrNoArchive
		}

		set, err := p.artifacts.Acquire(sessionID, sess.ArchiveRef, p.loadSet(sess.ArchiveRef))
		if err == nil {
			return sess, set, nil
		}
		if errors.Is(err, fs.ErrNotExist) && attempt == 0 {
			p.log.Debug("archive replaced during load", zap.String("session", sessionID), zap.String("ref", sess.ArchiveRef))
			continue
		}
		p.log.Warn("extraction failed", zap.String("session", sessionID), zap.Error(err))
		return sess, nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
}

func (p *Pipeline) loadSet(ref string) func() (*archive.Set, error) {
	return func() (*archive.Set, error) {
		data, err := p.storage.Read(ref)
		if err != nil {
			return nil, err
		}
		return p.reader.Load(data)
	}
}

// Artifact один извлеченный файл по ключу.
func (p *Pipeline) Artifact(ctx context.Context, sessionID, key string) (*archive.Artifact, error) {
	_, set, err := p.Results(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	a, ok := set.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoArtifact, key)
	}
	return a, nil
}

// Archive исходный архив целиком ("Download All").
func (p *Pipeline) Archive(ctx context.Context, sessionID string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		sess, err := p.store.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if !sess.HasArchive() {
			return nil, ErrNoArchive
		}
		data, err := p.storage.Read(sess.ArchiveRef)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, fs.ErrNotExist) && attempt == 0 {
			continue
		}
		return nil, fmt.Errorf("%w: %v", ErrNoArchive, err)
	}
}

// ApplyThresholds повторно отправляет исходное изображение с порогами.
// Успех заменяет архив целиком; при ошибке прежние результаты остаются.
func (p *Pipeline) ApplyThresholds(ctx context.Context, sessionID string, thresholds models.Thresholds) error {
	thresholds = thresholds.Normalize()

	actx, cancel := context.WithCancel(ctx)
	defer cancel()
	token := &inflight{cancel: cancel}

	p.mu.Lock()
	if _, busy := p.applies[sessionID]; busy {
		p.mu.Unlock()
		_ = p.Notify(ctx, sessionID, noticeBusy)
		return ErrBusy
	}
	p.applies[sessionID] = token
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.applies[sessionID] == token {
			delete(p.applies, sessionID)
		}
		p.mu.Unlock()
	}()

	sess, err := p.store.Update(ctx, sessionID, func(s *models.Session) error {
		s.Thresholds = thresholds
		return nil
	})
	if err != nil {
		return err
	}

	img, data, err := p.loadImage(sess)
	if err != nil {
		_ = p.Notify(ctx, sessionID, noticeImageMissing)
		return err
	}

	start := time.Now()
	out, err := p.processor.Process(actx, backend.Image{Name: img.Name, ContentType: img.Type, Data: data}, thresholds)
	if err == nil {
		current := func() bool { return p.applies[sessionID] == token && actx.Err() == nil }
		err = p.commitArchive(ctx, sessionID, current, out, func(s *models.Session) {
			s.Notify(noticeThresholdsApplied)
		})
	}
	if err != nil {
		if actx.Err() != nil {
			return err
		}
		p.log.Warn("threshold update failed", zap.String("session", sessionID), zap.Error(err))
		_ = p.Notify(ctx, sessionID, noticeThresholdsFailed)
		return err
	}

	p.log.Info("thresholds applied", zap.String("session", sessionID), zap.Duration("elapsed", time.Since(start)))
	return nil
}
