package echo

import (
	"context"
	"log/slog"
	"time"
)

const DefaultPromoteBatch = 100

// Promoter periodically moves due pending echos to live.
type Promoter struct {
	service   *Service
	interval  time.Duration
	batchSize int
}

func NewPromoter(service *Service, interval time.Duration) *Promoter {
	return &Promoter{
		service:   service,
		interval:  interval,
		batchSize: DefaultPromoteBatch,
	}
}

func (p *Promoter) Start(ctx context.Context) {
	slog.Info("starting echo promoter", "component", "promoter", "interval", p.interval)

	p.run(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping echo promoter", "component", "promoter")
			return
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

func (p *Promoter) run(ctx context.Context) {
	promoted, err := p.service.PromoteDue(ctx, p.batchSize)
	if err != nil {
		slog.Error("error promoting due echos", "component", "promoter", "error", err)
		return
	}
	if promoted > 0 {
		slog.Info("promoted due echos", "component", "promoter", "count", promoted)
	}
}
