package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"structify/internal/web/backend"
	"structify/internal/web/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ============================================================
// Processing Stage
// ============================================================

var (
	noticeProcessingComplete = models.Notice{
		Title:       "Processing Complete",
		Description: "Floorplan analysis finished successfully.",
		Variant:     models.NoticeDefault,
	}
	noticeProcessingFailed = models.Notice{
		Title:       "Processing Failed",
		Description: "An error occurred during processing",
		Variant:     models.NoticeDestructive,
	}
)

// Job одна обработка изображения: анимация фаз и удаленный вызов.
type Job struct {
	mu     sync.Mutex
	phase  int
	state    models.JobState
	err      error
	finished time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

func newJob(cancel context.CancelFunc) *Job {
	return &Job{
		state:  models.JobRunning,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Status снимок состояния.
func (j *Job) Status() models.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	total := len(models.Phases)
	status := models.JobStatus{
		Phase:    j.phase,
		Total:    total,
		State:    j.state,
		Progress: j.phase * 100 / total,
	}
	if j.err != nil {
		status.Error = j.err.Error()
	}
	return status
}

// Done закрывается по завершении задачи.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Cancel перестает ждать ответ backend.
func (j *Job) Cancel() {
	j.cancel()
}

func (j *Job) setPhase(phase int) {
	j.mu.Lock()
	j.phase = phase
	j.mu.Unlock()
}

func (j *Job) finish(state models.JobState, err error, at time.Time) {
	j.mu.Lock()
	j.state = state
	j.err = err
	j.finished = at
	j.mu.Unlock()
}

// finishedBefore завершена ли задача раньше cutoff; идущая задача не завершена.
func (j *Job) finishedBefore(cutoff time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state != models.JobRunning && !j.finished.After(cutoff)
}

// StartProcessing запускает новую обработку выбранного изображения,
// отменяя предыдущую задачу сессии.
func (p *Pipeline) StartProcessing(ctx context.Context, sessionID string) (*Job, error) {
	sess, err := p.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	img, data, err := p.loadImage(sess)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.jobs[sessionID]; ok {
		prev.Cancel()
	}
	return p.launch(sessionID, backend.Image{Name: img.Name, ContentType: img.Type, Data: data}), nil
}

// EnsureJob возвращает задачу сессии, запуская ее, если задачи нет.
// Повторные вызовы не порождают повторных запросов.
func (p *Pipeline) EnsureJob(ctx context.Context, sessionID string) (*Job, error) {
	p.mu.Lock()
	job, ok := p.jobs[sessionID]
	p.mu.Unlock()
	if ok {
		return job, nil
	}

	sess, err := p.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	img, data, err := p.loadImage(sess)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if job, ok := p.jobs[sessionID]; ok {
		return job, nil
	}
	return p.launch(sessionID, backend.Image{Name: img.Name, ContentType: img.Type, Data: data}), nil
}

// Job текущая задача сессии.
func (p *Pipeline) Job(sessionID string) (*Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	job, ok := p.jobs[sessionID]
	return job, ok
}

// DismissJob забывает завершенную задачу после того, как результат показан.
func (p *Pipeline) DismissJob(sessionID string, job *Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.jobs[sessionID] == job && job.Status().State != models.JobRunning {
		delete(p.jobs, sessionID)
	}
}

// launch вызывается под p.mu.
func (p *Pipeline) launch(sessionID string, img backend.Image) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	job := newJob(cancel)
	p.jobs[sessionID] = job

	p.log.Info("processing started",
		zap.String("session", sessionID),
		zap.String("filename", img.Name),
		zap.String("mode", string(p.opts.PhaseMode)))

	go p.run(ctx, sessionID, job, img)
	return job
}

func (p *Pipeline) run(ctx context.Context, sessionID string, job *Job, img backend.Image) {
	defer close(job.done)
	defer job.cancel()

	start := time.Now()
	data, err := p.process(ctx, job, img)
	if err == nil {
		current := func() bool { return p.jobs[sessionID] == job && ctx.Err() == nil }
		err = p.commitArchive(context.Background(), sessionID, current, data, func(s *models.Session) {
			s.Thresholds = models.DefaultThresholds()
			s.Notify(noticeProcessingComplete)
		})
	}

	if err != nil {
		if errors.Is(err, errSuperseded) || ctx.Err() != nil {
			p.log.Info("processing abandoned", zap.String("session", sessionID))
			job.finish(models.JobFailed, err, p.now())
			return
		}
		p.log.Warn("processing failed", zap.String("session", sessionID), zap.Error(err))
		// уведомление в очереди раньше, чем состояние failed
		if nerr := p.Notify(context.Background(), sessionID, noticeProcessingFailed); nerr != nil {
			p.log.Warn("failed to queue notice", zap.Error(nerr))
		}
		job.finish(models.JobFailed, err, p.now())
		return
	}

	job.finish(models.JobSucceeded, nil, p.now())
	p.log.Info("processing finished", zap.String("session", sessionID), zap.Duration("elapsed", time.Since(start)))
}

// process в последовательном режиме запрос уходит только после всех фаз.
func (p *Pipeline) process(ctx context.Context, job *Job, img backend.Image) ([]byte, error) {
	if p.opts.PhaseMode != PhaseModeConcurrent {
		if err := p.animate(ctx, job); err != nil {
			return nil, err
		}
		return p.processor.Process(ctx, img, nil)
	}

	var data []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.animate(gctx, job)
	})
	g.Go(func() error {
		out, err := p.processor.Process(gctx, img, nil)
		if err != nil {
			return err
		}
		data = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

// animate проходит все фазы, задерживаясь на каждой PhaseDwell.
func (p *Pipeline) animate(ctx context.Context, job *Job) error {
	for _, phase := range models.Phases {
		job.setPhase(phase.Index)

		timer := time.NewTimer(p.opts.PhaseDwell)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return nil
}
