package services

import (
	"context"
	"time"

	"github.com/swiftdrop/delivery-gateway/pkg/pg"
	"github.com/swiftdrop/delivery-gateway/pkg/redis"
)

// HealthService answers liveness probes: the process is up and its two
// backing stores respond.
type HealthService struct {
	db      *pg.DB
	adapter redis.RedisAdapter
}

func NewHealthService(db *pg.DB, adapter redis.RedisAdapter) *HealthService {
	return &HealthService{db: db, adapter: adapter}
}

func (s *HealthService) Get() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.Read(ctx).Exec("SELECT 1").Error; err != nil {
			return err
		}
	}
	if s.adapter != nil {
		if err := s.adapter.Client().Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}
