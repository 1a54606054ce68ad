package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/opensalaries/teacherpay-api/internal/models"
	appErrors "github.com/opensalaries/teacherpay-api/pkg/errors"
	"github.com/opensalaries/teacherpay-api/pkg/jobs"
)

type visitorStore interface {
	Upsert(ctx context.Context, ip string) error
	List(ctx context.Context, limit int) ([]models.VisitorIP, error)
}

// VisitorServiceConfig tunes the tracking queue.
type VisitorServiceConfig struct {
	Workers    int
	BufferSize int
}

// VisitorService records unique public visitors off the request path.
// Track never blocks and never fails a request; a saturated queue drops
// the observation.
type VisitorService struct {
	repo   visitorStore
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewVisitorService constructs the service and its worker queue. Start
// must be called before Track has any effect.
func NewVisitorService(repo visitorStore, cfg VisitorServiceConfig, logger *zap.Logger) *VisitorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &VisitorService{repo: repo, logger: logger}
	s.queue = jobs.NewQueue("visitor-tracking", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	return s
}

// Start launches the tracking workers.
func (s *VisitorService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *VisitorService) Stop() {
	s.queue.Stop()
}

// Track enqueues a visit observation.
func (s *VisitorService) Track(ip string) {
	if ip == "" {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{Type: "visit", Payload: ip}); err != nil {
		s.logger.Debug("visitor observation dropped", zap.Error(err))
	}
}

func (s *VisitorService) handle(ctx context.Context, job jobs.Job) error {
	ip, ok := job.Payload.(string)
	if !ok || ip == "" {
		return nil
	}
	return s.repo.Upsert(ctx, ip)
}

// List returns tracked visitors for the admin review screen.
func (s *VisitorService) List(ctx context.Context, limit int) ([]models.VisitorIP, error) {
	visitors, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list visitors")
	}
	return visitors, nil
}
