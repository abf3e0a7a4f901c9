package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/course-commerce/internal/model"
	"github.com/iliyamo/course-commerce/internal/queue"
)

// ReviewStats is the aggregate returned by the average endpoints.
type ReviewStats struct {
	AverageRating float64 `json:"averageRating"`
	TotalReviews  int     `json:"totalReviews"`
}

// Average returns the arithmetic mean of the star ratings, 0 when there
// are no reviews.
func Average(reviews []model.Review) ReviewStats {
	if len(reviews) == 0 {
		return ReviewStats{}
	}
	var sum int
	for _, r := range reviews {
		sum += r.Estrellas
	}
	return ReviewStats{AverageRating: float64(sum) / float64(len(reviews)), TotalReviews: len(reviews)}
}

// ReviewService writes reviews and keeps course and workshop averages
// current through review.changed tasks.
type ReviewService struct {
	reviews ReviewStore
	catalog CatalogStore
	tasks   Enqueuer
	logger  *slog.Logger
	Now     func() time.Time
}

// NewReviewService wires the review aggregator.
func NewReviewService(reviews ReviewStore, catalog CatalogStore, tasks Enqueuer, logger *slog.Logger) *ReviewService {
	return &ReviewService{reviews: reviews, catalog: catalog, tasks: tasks, logger: logger, Now: time.Now}
}

// Create stores a review and schedules the average refresh.
func (s *ReviewService) Create(ctx context.Context, rv *model.Review) error {
	if rv.Estrellas < 1 || rv.Estrellas > 5 {
		return fmt.Errorf("%w: estrellas must be between 1 and 5", ErrInvalidInput)
	}
	if err := s.checkTarget(ctx, rv.TargetKind, rv.TargetID); err != nil {
		return err
	}
	if rv.Fecha.IsZero() {
		rv.Fecha = s.Now().UTC()
	}
	if err := s.reviews.Create(ctx, rv); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	s.schedule(ctx, rv.TargetKind, rv.TargetID)
	return nil
}

// Delete removes a review and schedules the average refresh.
func (s *ReviewService) Delete(ctx context.Context, id uint64) error {
	rv, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.reviews.Delete(ctx, id); err != nil {
		return err
	}
	s.schedule(ctx, rv.TargetKind, rv.TargetID)
	return nil
}

// schedule enqueues a review.changed task.  A failed enqueue leaves the
// stored average stale until the next change, so it is only logged.
func (s *ReviewService) schedule(ctx context.Context, kind string, id uint64) {
	task := queue.ReviewChangedTask{TargetKind: kind, TargetID: id}
	if err := s.tasks.Enqueue(ctx, queue.TaskReviewChanged, task); err != nil {
		s.logger.Error("enqueue review refresh failed", "target_kind", kind, "target_id", id, "error", err)
	}
}

// Stats computes the current aggregate of a course or workshop.
func (s *ReviewService) Stats(ctx context.Context, kind string, id uint64) (ReviewStats, error) {
	if err := s.checkTarget(ctx, kind, id); err != nil {
		return ReviewStats{}, err
	}
	list, err := s.reviews.ListByTarget(ctx, kind, id)
	if err != nil {
		return ReviewStats{}, err
	}
	return Average(list), nil
}

// Refresh recomputes and persists the average of a course or workshop.
// It is the review.changed task handler.
func (s *ReviewService) Refresh(ctx context.Context, kind string, id uint64) error {
	list, err := s.reviews.ListByTarget(ctx, kind, id)
	if err != nil {
		return fmt.Errorf("list reviews: %w", err)
	}
	stats := Average(list)
	if err := s.catalog.UpdateAverage(ctx, kind, id, stats.AverageRating); err != nil {
		return fmt.Errorf("update average: %w", err)
	}
	s.logger.Info("review average refreshed", "target_kind", kind, "target_id", id,
		"average", stats.AverageRating, "reviews", stats.TotalReviews)
	return nil
}

func (s *ReviewService) checkTarget(ctx context.Context, kind string, id uint64) error {
	switch kind {
	case model.ReviewCourse:
		_, err := s.catalog.GetCourse(ctx, id)
		return err
	case model.ReviewWorkshop:
		_, err := s.catalog.GetWorkshop(ctx, id)
		return err
	}
	return fmt.Errorf("%w: review target %q", ErrInvalidInput, kind)
}
