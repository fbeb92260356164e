package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dfberenson/ob-resident-scheduler/config"
	"github.com/dfberenson/ob-resident-scheduler/internal/generator"
	"github.com/dfberenson/ob-resident-scheduler/internal/model"
	pkgerrors "github.com/dfberenson/ob-resident-scheduler/pkg/errors"
	"github.com/dfberenson/ob-resident-scheduler/pkg/metrics"
	"github.com/dfberenson/ob-resident-scheduler/pkg/tracing"
)

// Resolver 解析周期的求解输入
// 周期不存在或输入未就绪时返回 ErrInvalidPeriod
type Resolver interface {
	Resolve(ctx context.Context, periodID string) (*generator.Input, error)
}

// Recorder 将求解结果落库为新的 DRAFT 版本，返回版本 ID
type Recorder interface {
	RecordGenerated(ctx context.Context, periodID string, result *generator.Result) (string, error)
}

// Options 任务追踪参数
type Options struct {
	Workers      int
	QueueSize    int
	Ceiling      time.Duration
	Retention    time.Duration
	ReapInterval time.Duration
}

// OptionsFromConfig 由配置构造参数
func OptionsFromConfig(cfg *config.JobsConfig) Options {
	return Options{
		Workers:      cfg.Workers,
		QueueSize:    cfg.QueueSize,
		Ceiling:      cfg.Ceiling,
		Retention:    cfg.Retention,
		ReapInterval: cfg.ReapInterval,
	}
}

// errStale 任务已被其他流程推进，放弃本次迁移
var errStale = errors.New("任务状态已变化")

type task struct {
	jobID    string
	periodID string
	input    *generator.Input
	link     trace.Link
}

// Tracker 生成任务追踪器
// Submit/Poll 不加锁；Run 启动 worker 与回收协程
type Tracker struct {
	store     Store
	resolver  Resolver
	generator generator.Generator
	recorder  Recorder
	opts      Options
	logger    *zap.Logger
	metrics   metrics.Recorder
	tracer    trace.Tracer

	queue chan task
	slots chan struct{}

	subscribers      *xsync.Map[uint64, *jobSubscriber]
	nextSubscriberID atomic.Uint64

	now func() time.Time
}

// NewTracker 创建任务追踪器
func NewTracker(store Store, resolver Resolver, gen generator.Generator, recorder Recorder, opts Options, logger *zap.Logger, m metrics.Recorder) *Tracker {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Tracker{
		store:       store,
		resolver:    resolver,
		generator:   gen,
		recorder:    recorder,
		opts:        opts,
		logger:      logger,
		metrics:     m,
		tracer:      tracing.Tracer("jobs"),
		queue:       make(chan task, opts.QueueSize),
		slots:       make(chan struct{}, opts.QueueSize),
		subscribers: xsync.NewMap[uint64, *jobSubscriber](),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ════════════════════════════════════════════════════════════
// 提交与查询
// ════════════════════════════════════════════════════════════

// Submit 校验周期输入后创建 PENDING 任务并入队，立即返回
func (t *Tracker) Submit(ctx context.Context, periodID string) (*model.GenerationJob, error) {
	ctx, span := t.tracer.Start(ctx, "jobs.submit", trace.WithAttributes(attribute.String("period.id", periodID)))
	defer span.End()

	input, err := t.resolver.Resolve(ctx, periodID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// 先占用队列槽位，队列满时不创建任务
	select {
	case t.slots <- struct{}{}:
	default:
		span.SetStatus(codes.Error, "queue full")
		return nil, pkgerrors.WithDetail(pkgerrors.ErrJobQueueFull, periodID, "period_id")
	}

	job := &model.GenerationJob{
		JobID:     uuid.NewString(),
		PeriodID:  periodID,
		Status:    model.JobPending,
		CreatedAt: t.now(),
	}
	if err := t.store.Create(ctx, job); err != nil {
		<-t.slots
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("创建生成任务失败: %w", err)
	}

	t.queue <- task{
		jobID:    job.JobID,
		periodID: periodID,
		input:    input,
		link:     trace.LinkFromContext(ctx),
	}
	t.metrics.JobSubmitted()
	t.metrics.QueueDepth(len(t.queue))
	span.SetAttributes(attribute.String("job.id", job.JobID))

	t.logger.Info("生成任务已提交", zap.String("job_id", job.JobID), zap.String("period_id", periodID))
	return job, nil
}

// Poll 查询任务当前状态，无副作用
func (t *Tracker) Poll(ctx context.Context, jobID string) (*model.GenerationJob, error) {
	return t.store.Get(ctx, jobID)
}

// Subscribe 订阅任务状态变化
// 订阅后立即收到当前状态；任务进入终态后通道关闭
func (t *Tracker) Subscribe(ctx context.Context, jobID string) (<-chan model.GenerationJob, func(), error) {
	if _, err := t.store.Get(ctx, jobID); err != nil {
		return nil, nil, err
	}

	id := t.nextSubscriberID.Add(1)
	sub := &jobSubscriber{jobID: jobID, ch: make(chan model.GenerationJob, subscriberBuffer)}
	t.subscribers.Store(id, sub)

	// 注册后再读一次，避免漏掉注册期间发生的迁移
	current, err := t.store.Get(ctx, jobID)
	if err != nil {
		t.removeSubscriber(id)
		return nil, nil, err
	}
	sub.trySend(*current)
	if current.Status.Terminal() {
		t.removeSubscriber(id)
	}

	return sub.ch, func() { t.removeSubscriber(id) }, nil
}

// Wait 等待任务进入终态或 ctx 结束，返回最后观察到的状态
func (t *Tracker) Wait(ctx context.Context, jobID string) (*model.GenerationJob, error) {
	ch, unsubscribe, err := t.Subscribe(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer unsubscribe()

	var last *model.GenerationJob
	for {
		select {
		case job, ok := <-ch:
			if !ok {
				if last != nil {
					return last, nil
				}
				return t.store.Get(ctx, jobID)
			}
			j := job
			last = &j
			if j.Status.Terminal() {
				return last, nil
			}
		case <-ctx.Done():
			if last != nil {
				return last, nil
			}
			return t.store.Get(context.WithoutCancel(ctx), jobID)
		}
	}
}

func (t *Tracker) removeSubscriber(id uint64) {
	if sub, ok := t.subscribers.LoadAndDelete(id); ok {
		sub.close()
	}
}

func (t *Tracker) emit(job *model.GenerationJob) {
	t.subscribers.Range(func(id uint64, sub *jobSubscriber) bool {
		if sub.jobID != job.JobID {
			return true
		}
		sub.trySend(*job)
		if job.Status.Terminal() {
			t.removeSubscriber(id)
		}
		return true
	})
}

// ════════════════════════════════════════════════════════════
// 执行与回收
// ════════════════════════════════════════════════════════════

// Run 启动 worker 与回收协程，阻塞至 ctx 结束
func (t *Tracker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < t.opts.Workers; i++ {
		g.Go(func() error {
			t.work(gctx)
			return nil
		})
	}
	g.Go(func() error {
		t.reapLoop(gctx)
		return nil
	})

	t.logger.Info("生成任务追踪器已启动",
		zap.Int("workers", t.opts.Workers),
		zap.Int("queue_size", t.opts.QueueSize),
		zap.Duration("ceiling", t.opts.Ceiling),
	)
	return g.Wait()
}

func (t *Tracker) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tk := <-t.queue:
			<-t.slots
			t.metrics.QueueDepth(len(t.queue))
			t.process(ctx, tk)
		}
	}
}

func (t *Tracker) process(ctx context.Context, tk task) {
	ctx, span := t.tracer.Start(ctx, "jobs.process",
		trace.WithLinks(tk.link),
		trace.WithAttributes(
			attribute.String("job.id", tk.jobID),
			attribute.String("period.id", tk.periodID),
		),
	)
	defer span.End()

	job, err := t.store.Update(ctx, tk.jobID, func(j *model.GenerationJob) error {
		if !j.Status.CanTransitionTo(model.JobRunning) {
			return errStale
		}
		now := t.now()
		j.Status = model.JobRunning
		j.StartedAt = &now
		return nil
	})
	if err != nil {
		t.logger.Warn("任务无法开始执行", zap.String("job_id", tk.jobID), zap.Error(err))
		return
	}
	t.emit(job)

	runCtx, cancel := context.WithDeadline(ctx, job.CreatedAt.Add(t.opts.Ceiling))
	defer cancel()

	var versionID string
	result, err := t.generator.Generate(runCtx, tk.input)
	if err == nil {
		versionID, err = t.recorder.RecordGenerated(runCtx, tk.periodID, result)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	// 服务关闭时仍需写入终态
	finishCtx, finishCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer finishCancel()
	t.finish(finishCtx, tk.jobID, versionID, err)
}

// failureKind 将执行错误归类为任务失败类型
func failureKind(err error) string {
	switch {
	case errors.Is(err, pkgerrors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return pkgerrors.KindOf(pkgerrors.ErrTimeout)
	case errors.Is(err, pkgerrors.ErrGeneratorFailure), errors.Is(err, context.Canceled):
		return pkgerrors.KindOf(pkgerrors.ErrGeneratorFailure)
	default:
		return pkgerrors.KindOf(err)
	}
}

func (t *Tracker) finish(ctx context.Context, jobID, versionID string, runErr error) {
	job, err := t.store.Update(ctx, jobID, func(j *model.GenerationJob) error {
		if j.Status.Terminal() {
			return errStale
		}
		now := t.now()
		j.FinishedAt = &now
		if runErr != nil {
			j.Status = model.JobFailure
			j.Error = &model.JobError{Kind: failureKind(runErr), Message: runErr.Error()}
			return nil
		}
		j.Status = model.JobSuccess
		j.VersionID = versionID
		return nil
	})
	if err != nil {
		t.logger.Warn("任务终态写入被跳过", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	t.record(job)
	t.emit(job)

	if job.Status == model.JobFailure {
		t.logger.Warn("生成任务失败",
			zap.String("job_id", jobID),
			zap.String("kind", job.Error.Kind),
			zap.String("error", job.Error.Message),
		)
		return
	}
	t.logger.Info("生成任务完成", zap.String("job_id", jobID), zap.String("version_id", versionID))
}

func (t *Tracker) record(job *model.GenerationJob) {
	kind := ""
	if job.Error != nil {
		kind = job.Error.Kind
	}
	elapsed := time.Duration(0)
	if job.FinishedAt != nil {
		elapsed = job.FinishedAt.Sub(job.CreatedAt)
	}
	t.metrics.JobFinished(string(job.Status), kind, elapsed)
}

func (t *Tracker) reapLoop(ctx context.Context) {
	interval := t.opts.ReapInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.reap(ctx, t.now())
		}
	}
}

// reap 将超过 ceiling 的未完成任务置为 Timeout，并清理超过保留期的终态任务
func (t *Tracker) reap(ctx context.Context, now time.Time) {
	active, err := t.store.Active(ctx)
	if err != nil {
		t.logger.Error("查询未完成任务失败", zap.Error(err))
		return
	}

	timedOut := 0
	for _, candidate := range active {
		if now.Sub(candidate.CreatedAt) <= t.opts.Ceiling {
			continue
		}
		job, err := t.store.Update(ctx, candidate.JobID, func(j *model.GenerationJob) error {
			if j.Status.Terminal() {
				return errStale
			}
			j.Status = model.JobFailure
			j.FinishedAt = &now
			j.Error = &model.JobError{
				Kind:    pkgerrors.KindOf(pkgerrors.ErrTimeout),
				Message: fmt.Sprintf("任务超过最长执行时间 %s", t.opts.Ceiling),
			}
			return nil
		})
		if err != nil {
			continue
		}
		timedOut++
		t.record(job)
		t.emit(job)
		t.logger.Warn("生成任务超时", zap.String("job_id", job.JobID), zap.String("period_id", job.PeriodID))
	}

	purged, err := t.store.Purge(ctx, now.Add(-t.opts.Retention))
	if err != nil {
		t.logger.Error("清理过期任务失败", zap.Error(err))
	}

	if timedOut > 0 {
		t.metrics.JobsReaped("timeout", timedOut)
	}
	if purged > 0 {
		t.metrics.JobsReaped("expired", purged)
	}
}
