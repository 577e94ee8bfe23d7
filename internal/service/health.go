package service

import (
	"context"
	"log/slog"

	"github.com/pribylovaa/go-blog/internal/pkg/log"
	"github.com/pribylovaa/go-blog/pkg/models"
)

// Health пингует БД; недоступность отражается в ответе, а не ошибкой.
func (s *Service) Health(ctx context.Context) *models.Health {
	if err := s.storage.Ping(ctx); err != nil {
		log.From(ctx).Warn("health_db_down", slog.String("err", err.Error()))
		return &models.Health{Status: "degraded", Database: "down"}
	}

	return &models.Health{Status: "ok", Database: "up"}
}
