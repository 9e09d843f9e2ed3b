package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kanren/internal/detect"
	"github.com/hyperjump/kanren/internal/errors"
	"github.com/hyperjump/kanren/internal/models"
	"github.com/hyperjump/kanren/internal/ocr"
	"github.com/hyperjump/kanren/internal/progress"
	"github.com/hyperjump/kanren/internal/storage"
	"github.com/hyperjump/kanren/pkg/utils"
)

// DefaultQueueSize is the buffer of each worker queue.
const DefaultQueueSize = 256

// Models holds the recognition capabilities. A nil field disables its stage: the stage is
// skipped and counts as complete with no output.
type Models struct {
	Detector    detect.Detector
	BoxOCR      ocr.BoxEngine
	FreeformOCR ocr.FreeformEngine
}

// Close releases every non-nil model.
func (m Models) Close() error {
	var errs []error
	if m.Detector != nil {
		errs = append(errs, m.Detector.Close())
	}
	if m.BoxOCR != nil {
		errs = append(errs, m.BoxOCR.Close())
	}
	if m.FreeformOCR != nil {
		errs = append(errs, m.FreeformOCR.Close())
	}
	return stderrors.Join(errs...)
}

// Options holds the pipeline tuning values.
type Options struct {
	QueueSize      int
	MergeThreshold float64
	DedupThreshold float64
}

// Pipeline owns the detection and OCR workers. OCR jobs of a video are queued only after every
// detection job of that video has finished.
type Pipeline struct {
	store      storage.Storage
	models     Models
	broker     progress.Broker
	logger     *zap.Logger
	opts       Options
	onComplete func(ctx context.Context, videoID string)
	loadImage  func(path string) (image.Image, error)

	detection *Worker[DetectionJob]
	ocr       *Worker[Job]

	mu   sync.Mutex
	runs map[string]*Run
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = utils.OrNop(l) }
}

// WithBroker publishes ocr_* progress events.
func WithBroker(b progress.Broker) Option {
	return func(p *Pipeline) { p.broker = b }
}

// WithOptions sets queue size and reconciliation thresholds.
func WithOptions(o Options) Option {
	return func(p *Pipeline) { p.opts = o }
}

// WithOnComplete registers a callback run after a video's OCR finishes, such as dropping a
// relationship graph built from older text.
func WithOnComplete(fn func(ctx context.Context, videoID string)) Option {
	return func(p *Pipeline) { p.onComplete = fn }
}

// New creates a pipeline. Call Start before Submit.
func New(store storage.Storage, m Models, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     store,
		models:    m,
		logger:    zap.NewNop(),
		opts:      Options{QueueSize: DefaultQueueSize},
		loadImage: detect.LoadImage,
		runs:      make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.opts.QueueSize <= 0 {
		p.opts.QueueSize = DefaultQueueSize
	}
	p.detection = NewWorker("detection", p.opts.QueueSize, p.handleDetection, p.detectionDone, p.logger)
	p.ocr = NewWorker("ocr", p.opts.QueueSize, p.handleOCR, p.ocrDone, p.logger)
	return p
}

// Start launches both workers. They stop when ctx is done or Close is called.
func (p *Pipeline) Start(ctx context.Context) {
	p.detection.Start(ctx)
	p.ocr.Start(ctx)
}

// Close drains both queues and stops the workers.
func (p *Pipeline) Close() {
	p.detection.Close()
	p.ocr.Close()
}

// Submit queues detection for every scene of videoID that has an image, followed by OCR under
// pref. A video that is already running returns its current run.
func (p *Pipeline) Submit(ctx context.Context, videoID string, pref ocr.Preference) (*Run, error) {
	const op = "pipeline.Submit"
	if pref == "" {
		pref = ocr.PreferTesseract
	}
	scenes, err := p.store.GetScenes(ctx, videoID)
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, errors.MissingInputf(op, videoID, "no scene data available")
	}
	if err != nil {
		return nil, errors.Processing(op, videoID, fmt.Errorf("load scenes: %w", err))
	}

	var jobs []DetectionJob
	if p.models.Detector != nil {
		for i, s := range scenes {
			if s.Fullsize != "" {
				jobs = append(jobs, DetectionJob{VideoID: videoID, SceneIndex: i, ImagePath: s.Fullsize})
			}
		}
	} else {
		p.logger.Warn("no layout detector, skipping detection", zap.String("video_id", videoID))
	}

	p.mu.Lock()
	if r, ok := p.runs[videoID]; ok && !r.finished() {
		p.mu.Unlock()
		return r, nil
	}
	run := newRun(videoID, pref, len(jobs))
	p.runs[videoID] = run
	p.mu.Unlock()

	if err := p.store.ClearMarker(ctx, videoID, storage.StageOCR, storage.MarkerError); err != nil {
		p.logger.Warn("clear error marker", zap.String("video_id", videoID), zap.Error(err))
	}
	if err := p.store.SetMarker(ctx, videoID, storage.StageOCR, storage.MarkerProgress, "processing"); err != nil {
		p.logger.Warn("set progress marker", zap.String("video_id", videoID), zap.Error(err))
	}
	p.logger.Info("pipeline run submitted",
		zap.String("video_id", videoID),
		zap.String("run_id", run.ID),
		zap.String("preference", string(pref)),
		zap.Int("detection_jobs", len(jobs)))

	if len(jobs) == 0 {
		if err := p.queueOCR(ctx, run); err != nil {
			p.abort(ctx, run, err)
			return nil, err
		}
		return run, nil
	}
	for _, j := range jobs {
		if err := p.detection.Enqueue(ctx, j); err != nil {
			err = errors.Processing(op, videoID, fmt.Errorf("enqueue detection: %w", err))
			p.abort(ctx, run, err)
			return nil, err
		}
	}
	return run, nil
}

// Run returns the latest run of videoID.
func (p *Pipeline) Run(videoID string) (*Run, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.runs[videoID]
	return r, ok
}

// Status returns the counters of the latest run of videoID. A video that was never submitted
// reports zero totals and is complete. A persisted error marker is reported as Error.
func (p *Pipeline) Status(ctx context.Context, videoID string) (models.ProcessingStatus, error) {
	st := models.ProcessingStatus{VideoID: videoID, AllComplete: true}
	if r, ok := p.Run(videoID); ok {
		st = r.Status()
	}
	if st.Error == "" {
		m, err := p.store.GetMarker(ctx, videoID, storage.StageOCR, storage.MarkerError)
		if err != nil {
			return st, fmt.Errorf("read error marker: %w", err)
		}
		if m != nil {
			st.Error = m.Message
		}
	}
	return st, nil
}

// Wait blocks until the latest run of videoID finishes or ctx is done.
func (p *Pipeline) Wait(ctx context.Context, videoID string) error {
	r, ok := p.Run(videoID)
	if !ok {
		return nil
	}
	return r.Wait(ctx)
}

func (p *Pipeline) run(videoID string) *Run {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs[videoID]
}

// queueOCR enqueues the OCR jobs of a run whose detection has finished.
func (p *Pipeline) queueOCR(ctx context.Context, run *Run) error {
	scenes, err := p.store.GetScenes(ctx, run.VideoID)
	if err != nil {
		return errors.Processing("pipeline.queueOCR", run.VideoID, fmt.Errorf("load scenes: %w", err))
	}
	box := run.Preference.UsesBox() && p.models.BoxOCR != nil
	freeform := run.Preference.UsesFreeform() && p.models.FreeformOCR != nil
	var jobs []Job
	for i := range scenes {
		s := &scenes[i]
		if s.Fullsize == "" {
			continue
		}
		if box && needsBoxOCR(s) {
			jobs = append(jobs, TesseractJob{VideoID: run.VideoID, SceneIndex: i, ImagePath: s.Fullsize})
		}
		if freeform {
			jobs = append(jobs, FreeformJob{VideoID: run.VideoID, SceneIndex: i, ImagePath: s.Fullsize})
		}
	}
	if !run.queueOCR(len(jobs)) {
		return nil
	}
	if len(jobs) == 0 {
		p.complete(ctx, run)
		return nil
	}
	for _, j := range jobs {
		if err := p.ocr.Enqueue(ctx, j); err != nil {
			return errors.Processing("pipeline.queueOCR", run.VideoID, fmt.Errorf("enqueue ocr: %w", err))
		}
	}
	return nil
}

func needsBoxOCR(s *models.Scene) bool {
	if !s.HasDetections() {
		return false
	}
	for _, d := range s.Detections.Detections {
		if d.NeedsOCR {
			return true
		}
	}
	return false
}

func (p *Pipeline) detectionDone(ctx context.Context, job DetectionJob, err error) {
	run := p.run(job.VideoID)
	if run == nil {
		return
	}
	if err != nil {
		p.recordFailure(ctx, run, job, err)
	}
	completed, total, last := run.detectionDone()
	p.publish(ctx, job.VideoID, progress.Event{
		Type:       progress.EventOcrProgress,
		Total:      total,
		Completed:  completed,
		Percent:    progress.Percent(completed, total),
		SceneIndex: models.IntPtr(job.SceneIndex),
		Message:    "layout detection",
	})
	if last && !run.finished() {
		if err := p.queueOCR(ctx, run); err != nil {
			p.recordFailure(ctx, run, job, err)
			p.complete(ctx, run)
		}
	}
}

func (p *Pipeline) ocrDone(ctx context.Context, job Job, err error) {
	run := p.run(job.Video())
	if run == nil {
		return
	}
	if err != nil {
		p.recordFailure(ctx, run, job, err)
	}
	completed, total, last := run.ocrDone()
	p.publish(ctx, job.Video(), progress.Event{
		Type:       progress.EventOcrProgress,
		Total:      total,
		Completed:  completed,
		Percent:    progress.Percent(completed, total),
		SceneIndex: models.IntPtr(job.Scene()),
		Message:    "text recognition",
	})
	if last && !run.finished() {
		p.complete(ctx, run)
	}
}

func (p *Pipeline) recordFailure(ctx context.Context, run *Run, job Job, err error) {
	msg := err.Error()
	run.fail(msg)
	p.logger.Error("pipeline job failed",
		zap.String("video_id", job.Video()),
		zap.Int("scene_index", job.Scene()),
		zap.String("job", fmt.Sprintf("%T", job)),
		zap.Error(err))
	if merr := p.store.SetMarker(ctx, job.Video(), storage.StageOCR, storage.MarkerError, msg); merr != nil {
		p.logger.Warn("set error marker", zap.String("video_id", job.Video()), zap.Error(merr))
	}
	p.publish(ctx, job.Video(), progress.Event{
		Type:       progress.EventOcrError,
		SceneIndex: models.IntPtr(job.Scene()),
		Error:      msg,
	})
}

// abort ends a run that could not be fully queued.
func (p *Pipeline) abort(ctx context.Context, run *Run, err error) {
	run.fail(err.Error())
	if merr := p.store.SetMarker(ctx, run.VideoID, storage.StageOCR, storage.MarkerError, err.Error()); merr != nil {
		p.logger.Warn("set error marker", zap.String("video_id", run.VideoID), zap.Error(merr))
	}
	if cerr := p.store.ClearMarker(ctx, run.VideoID, storage.StageOCR, storage.MarkerProgress); cerr != nil {
		p.logger.Warn("clear progress marker", zap.String("video_id", run.VideoID), zap.Error(cerr))
	}
	run.finish()
}

func (p *Pipeline) complete(ctx context.Context, run *Run) {
	if err := p.store.ClearMarker(ctx, run.VideoID, storage.StageOCR, storage.MarkerProgress); err != nil {
		p.logger.Warn("clear progress marker", zap.String("video_id", run.VideoID), zap.Error(err))
	}
	st := run.Status()
	p.publish(ctx, run.VideoID, progress.Event{
		Type:      progress.EventOcrComplete,
		Total:     st.OcrTotal,
		Completed: st.OcrCompleted,
		Percent:   100,
		Message:   "processing complete",
	})
	if p.onComplete != nil {
		p.onComplete(ctx, run.VideoID)
	}
	p.logger.Info("pipeline run complete",
		zap.String("video_id", run.VideoID),
		zap.String("run_id", run.ID),
		zap.Int("detections", st.DetectionCompleted),
		zap.Int("ocr_jobs", st.OcrCompleted),
		zap.Bool("errors", st.Error != ""))
	run.finish()
}

func (p *Pipeline) publish(ctx context.Context, videoID string, ev progress.Event) {
	if p.broker == nil {
		return
	}
	if err := p.broker.Publish(ctx, videoID, ev); err != nil {
		p.logger.Debug("progress publish failed", zap.String("video_id", videoID), zap.Error(err))
	}
}
