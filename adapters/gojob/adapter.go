package gojob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-bookswap/core"
	glog "github.com/goliatone/go-logger/glog"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
)

const (
	JobIDOutboxDispatch        = "bookswap.outbox.dispatch"
	JobIDReputationRecalculate = "bookswap.reputation.recalculate"

	paramBatchSize = "batch_size"
	paramUserID    = "user_id"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		BaseDelay:       time.Second,
		MaxDelay:        time.Minute,
		DeadLetterOnMax: true,
	}
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation. An
// empty disposition means retry; a retry at MaxAttempts becomes dead_letter, or
// failed when DeadLetterOnMax is off. Terminal dispositions carry no delay.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Disposition == "" {
		out.Disposition = queue.NackDispositionRetry
	}
	if out.Disposition == queue.NackDispositionRetry && p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Disposition = queue.NackDispositionFailed
		if p.DeadLetterOnMax {
			out.Disposition = queue.NackDispositionDeadLetter
		}
	}
	if out.Disposition != queue.NackDispositionRetry || out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	return out
}

// DelayFor returns BaseDelay doubled per previous attempt.
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt <= 1 {
		return p.BaseDelay
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// DispatchMessage builds the queue message for one outbox dispatch run.
func DispatchMessage(batchSize int, idempotencyKey string) *job.ExecutionMessage {
	params := map[string]any{}
	if batchSize > 0 {
		params[paramBatchSize] = batchSize
	}
	return &job.ExecutionMessage{
		JobID:          JobIDOutboxDispatch,
		ScriptPath:     JobIDOutboxDispatch,
		Parameters:     params,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
	}
}

// RecalculateMessage builds the queue message the review collaborator sends
// after a review for userID changes.
func RecalculateMessage(userID int64) *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID:          JobIDReputationRecalculate,
		ScriptPath:     JobIDReputationRecalculate,
		Parameters:     map[string]any{paramUserID: userID},
		IdempotencyKey: fmt.Sprintf("%s:%d", JobIDReputationRecalculate, userID),
	}
}

type Scheduler struct {
	enqueuer queue.Enqueuer
}

func NewScheduler(enqueuer queue.Enqueuer) *Scheduler {
	return &Scheduler{enqueuer: enqueuer}
}

func (s *Scheduler) ScheduleDispatch(ctx context.Context, batchSize int, idempotencyKey string) error {
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	_, err := s.enqueuer.Enqueue(ctx, DispatchMessage(batchSize, idempotencyKey))
	return err
}

func (s *Scheduler) ScheduleRecalculate(ctx context.Context, userID int64) error {
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	if userID <= 0 {
		return fmt.Errorf("gojob: user id must be positive")
	}
	_, err := s.enqueuer.Enqueue(ctx, RecalculateMessage(userID))
	return err
}

type RatingRecalculator interface {
	RecalculateRating(ctx context.Context, userID int64) (core.UserReputation, error)
}

// Runner executes bookswap job deliveries and settles them on the queue.
type Runner struct {
	dispatcher   core.LifecycleDispatcher
	recalculator RatingRecalculator
	policy       RetryPolicy
	logger       glog.Logger
}

type RunnerOption func(*Runner)

func WithRetryPolicy(policy RetryPolicy) RunnerOption {
	return func(r *Runner) {
		r.policy = policy
	}
}

func WithRatingRecalculator(recalculator RatingRecalculator) RunnerOption {
	return func(r *Runner) {
		r.recalculator = recalculator
	}
}

func WithLogger(logger glog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRunner(dispatcher core.LifecycleDispatcher, opts ...RunnerOption) (*Runner, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("gojob: lifecycle dispatcher is required")
	}
	runner := &Runner{
		dispatcher: dispatcher,
		policy:     DefaultRetryPolicy(),
		logger:     glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(runner)
		}
	}
	return runner, nil
}

// Process runs one delivery and acks it on success. Failures are nacked
// with the policy delay for attempt; business errors are dead-lettered
// since replaying them cannot succeed.
func (r *Runner) Process(ctx context.Context, delivery queue.Delivery, attempt int) error {
	if r == nil {
		return fmt.Errorf("gojob: runner is not configured")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	msg := delivery.Message()
	if msg == nil {
		return delivery.Nack(ctx, r.policy.NormalizeAttempt(queue.NackOptions{
			Disposition: queue.NackDispositionDeadLetter,
			Reason:      "missing execution message",
		}, attempt))
	}

	runErr := r.execute(ctx, msg)
	if runErr == nil {
		return delivery.Ack(ctx)
	}

	opts := queue.NackOptions{
		Disposition: queue.NackDispositionRetry,
		Delay:       r.policy.DelayFor(attempt),
		Reason:      runErr.Error(),
	}
	if kind := core.KindOf(runErr); kind != core.ErrorInternal {
		opts.Disposition = queue.NackDispositionDeadLetter
	}
	normalized := r.policy.NormalizeAttempt(opts, attempt)
	r.logger.Error("bookswap job failed",
		"job_id", msg.JobID,
		"attempt", attempt,
		"disposition", string(normalized.Disposition),
		"delay_ms", normalized.Delay.Milliseconds(),
		"error", runErr)
	if err := delivery.Nack(ctx, normalized); err != nil {
		return err
	}
	return runErr
}

func (r *Runner) execute(ctx context.Context, msg *job.ExecutionMessage) error {
	switch strings.TrimSpace(msg.JobID) {
	case JobIDOutboxDispatch:
		batchSize, _ := intParam(msg.Parameters, paramBatchSize)
		stats, err := r.dispatcher.DispatchPending(ctx, batchSize)
		if err != nil {
			return err
		}
		r.logger.Info("outbox dispatch completed",
			"claimed", stats.Claimed,
			"delivered", stats.Delivered,
			"retried", stats.Retried,
			"failed", stats.Failed)
		return nil
	case JobIDReputationRecalculate:
		if r.recalculator == nil {
			return fmt.Errorf("gojob: rating recalculator is not configured")
		}
		userID, ok := intParam(msg.Parameters, paramUserID)
		if !ok || userID <= 0 {
			return core.ValidationError(paramUserID, "user id must be positive")
		}
		_, err := r.recalculator.RecalculateRating(ctx, int64(userID))
		return err
	default:
		return core.ValidationError("job_id", fmt.Sprintf("unknown job %q", msg.JobID))
	}
}

func intParam(params map[string]any, key string) (int, bool) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, false
	}
	switch value := raw.(type) {
	case int:
		return value, true
	case int32:
		return int(value), true
	case int64:
		return int(value), true
	case float64:
		return int(value), true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		return parsed, err == nil
	default:
		return 0, false
	}
}

// LoggingHook reports worker lifecycle events through glog.
type LoggingHook struct {
	logger glog.Logger
}

func NewLoggingHook(logger glog.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(_ context.Context, event worker.Event) {
	h.log("bookswap job started", event)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.log("bookswap job succeeded", event)
}

func (h *LoggingHook) OnFailure(_ context.Context, event worker.Event) {
	h.log("bookswap job failed", event)
}

func (h *LoggingHook) OnRetry(_ context.Context, event worker.Event) {
	h.log("bookswap job retrying", event)
}

func (h *LoggingHook) log(message string, event worker.Event) {
	if h == nil || h.logger == nil {
		return
	}
	fields := eventFields(event)
	if event.Err != nil {
		h.logger.Error(message, fields...)
		return
	}
	h.logger.Info(message, fields...)
}

func eventFields(event worker.Event) []any {
	msg := event.Message
	if msg == nil && event.Delivery != nil {
		msg = event.Delivery.Message()
	}
	jobID := ""
	if msg != nil {
		jobID = msg.JobID
	}
	fields := []any{
		"job_id", jobID,
		"attempt", event.Attempt,
		"duration_ms", event.Duration.Milliseconds(),
	}
	if event.Delay > 0 {
		fields = append(fields, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err.Error())
	}
	return fields
}

var (
	_ worker.Hook              = (*LoggingHook)(nil)
	_ core.LifecycleDispatcher = (*core.OutboxDispatcher)(nil)
)
