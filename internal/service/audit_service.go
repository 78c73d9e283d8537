package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
	"github.com/noah-isme/enrollment-finance-api/pkg/config"
	"github.com/noah-isme/enrollment-finance-api/pkg/jobs"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type requestMetaKey struct{}

// RequestMeta carries client details recorded on audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// WithRequestMeta attaches client details to ctx.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the client details attached by WithRequestMeta.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// AuditEntry describes one audited change.
type AuditEntry struct {
	Actor      models.Actor
	Action     string
	Resource   string
	ResourceID string
	OldValues  interface{}
	NewValues  interface{}
}

// AuditService writes audit logs through a background queue so that request paths never
// wait on the audit table. When the queue is not running or full the entry is written inline.
type AuditService struct {
	repo    auditWriter
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditService constructs the service and its dispatcher queue.
func NewAuditService(repo auditWriter, cfg config.AuditConfig, metrics *MetricsService, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue("audit", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the dispatcher workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains queued entries.
func (s *AuditService) Stop(ctx context.Context) error {
	return s.queue.Stop(ctx)
}

// Record builds an audit log from entry and dispatches it. Failures are logged only.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	if s == nil {
		return
	}
	log := newAuditLog(ctx, entry, s.logger)
	err := s.queue.Enqueue(jobs.Job{ID: log.ID, Type: entry.Action, Payload: log})
	if err == nil {
		return
	}
	if !errors.Is(err, jobs.ErrQueueStopped) {
		s.metrics.AuditDropped()
		s.logger.Warn("audit queue rejected entry, writing inline", zap.String("action", entry.Action), zap.Error(err))
	}
	if err := s.repo.CreateAuditLog(context.WithoutCancel(ctx), log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(*models.AuditLog)
	if !ok {
		s.logger.Error("unexpected audit payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.repo.CreateAuditLog(ctx, log)
}

// newAuditLog converts entry into a row, reading client details from ctx.
func newAuditLog(ctx context.Context, entry AuditEntry, logger *zap.Logger) *models.AuditLog {
	meta := RequestMetaFromContext(ctx)
	log := &models.AuditLog{
		ID:        uuid.NewString(),
		ActorKind: string(entry.Actor.Kind),
		Action:    entry.Action,
		Resource:  entry.Resource,
		OldValues: marshalAuditValues(entry.OldValues, logger),
		NewValues: marshalAuditValues(entry.NewValues, logger),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
	if entry.Actor.ID != "" {
		id := entry.Actor.ID
		log.ActorID = &id
	}
	if log.ActorKind == "" {
		log.ActorKind = "SYSTEM"
	}
	if entry.ResourceID != "" {
		id := entry.ResourceID
		log.ResourceID = &id
	}
	return log
}

func marshalAuditValues(v interface{}, logger *zap.Logger) []byte {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		if logger != nil {
			logger.Warn("failed to encode audit values", zap.Error(err))
		}
		return nil
	}
	return raw
}
