package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/clinic_portal/internal/model"
	"go.uber.org/zap"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// ActivityService журнал действий по врачу
type ActivityService struct {
	repo   ActivityStore
	logger *zap.Logger
}

func NewActivityService(repo ActivityStore, logger *zap.Logger) *ActivityService {
	return &ActivityService{repo: repo, logger: logger}
}

// Record пишет событие в журнал. Ошибка записи только логируется
func (s *ActivityService) Record(ctx context.Context, doctorID int64, actor Actor, action, details string) {
	entry := &model.ActivityEntry{
		DoctorID: doctorID,
		Actor:    actor.Name(),
		Action:   action,
		Details:  details,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to record activity",
			zap.Int64("doctor_id", doctorID),
			zap.String("action", action),
			zap.Error(err))
	}
}

// List последние события врача
func (s *ActivityService) List(ctx context.Context, actor Actor, doctorID int64, limit int) ([]*model.ActivityEntry, error) {
	if !actor.CanManageDoctor(doctorID) {
		return nil, ErrForbidden
	}

	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	entries, err := s.repo.ListByDoctor(ctx, doctorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}

	return entries, nil
}
