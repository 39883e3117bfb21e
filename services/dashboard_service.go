package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/placementpulse/api/model"
	"github.com/placementpulse/api/utils"
	"github.com/placementpulse/api/utils/metrics"
)

const (
	AnnouncementsCacheTTL = 60 * time.Second
	announcementsLimit    = 20

	AudienceAll      = "all"
	AudienceEnrolled = "enrolled"
)

// DashboardStore reads what the learner dashboard shows
type DashboardStore interface {
	ListAnnouncements(ctx context.Context, audience string, limit int) ([]model.Announcement, error)
	ListEnrollments(ctx context.Context, userID uint) ([]model.Enrollment, error)
	CountEnrollments(ctx context.Context, userID uint) (int64, error)
}

// JSONCache is the cache used for dashboard reads
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type AnnouncementAuthor struct {
	Name string `json:"name"`
}

type AnnouncementView struct {
	ID        uint                `json:"id"`
	Title     string              `json:"title"`
	Content   string              `json:"content"`
	Type      string              `json:"type"`
	Priority  string              `json:"priority"`
	CreatedAt time.Time           `json:"createdAt"`
	CreatedBy *AnnouncementAuthor `json:"createdBy,omitempty"`
}

type EnrolledCourseView struct {
	CourseID    string    `json:"courseId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Category    string    `json:"category"`
	Instructor  string    `json:"instructor"`
	Progress    int       `json:"progress"`
	Status      string    `json:"status"`
	EnrolledAt  time.Time `json:"enrolledAt"`
}

// DashboardService serves the learner dashboard
type DashboardService struct {
	store  DashboardStore
	cache  JSONCache
	logger *slog.Logger
}

// NewDashboardService creates a new dashboard service. cache may be nil.
func NewDashboardService(store DashboardStore, cache JSONCache, logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &DashboardService{store: store, cache: cache, logger: logger}
}

// AudienceFor picks the announcement audience of a user
func (s *DashboardService) AudienceFor(ctx context.Context, userID uint) (string, error) {
	count, err := s.store.CountEnrollments(ctx, userID)
	if err != nil {
		return "", err
	}
	if count > 0 {
		return AudienceEnrolled, nil
	}
	return AudienceAll, nil
}

// ListAnnouncements returns active announcements for the audience, newest first
func (s *DashboardService) ListAnnouncements(ctx context.Context, audience string) ([]AnnouncementView, error) {
	if audience == "" {
		audience = AudienceAll
	}
	key := "announcements:" + audience

	if s.cache != nil {
		var cached []AnnouncementView
		if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
			metrics.AnnouncementsCacheHitCounter.Inc()
			return cached, nil
		}
	}
	metrics.AnnouncementsCacheMissCounter.Inc()

	announcements, err := s.store.ListAnnouncements(ctx, audience, announcementsLimit)
	if err != nil {
		return nil, err
	}

	views := make([]AnnouncementView, len(announcements))
	for i, a := range announcements {
		views[i] = AnnouncementView{
			ID:        a.ID,
			Title:     a.Title,
			Content:   a.Content,
			Type:      a.Type,
			Priority:  a.Priority,
			CreatedAt: a.CreatedAt,
		}
		if a.CreatedBy != nil {
			views[i].CreatedBy = &AnnouncementAuthor{Name: a.CreatedBy.Name}
		}
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, views, AnnouncementsCacheTTL); err != nil {
			s.logger.WarnContext(ctx, "Failed to cache announcements", "error", err)
		}
	}

	return views, nil
}

// ListEnrolledCourses returns a user's enrollments with course details
func (s *DashboardService) ListEnrolledCourses(ctx context.Context, userID uint) ([]EnrolledCourseView, error) {
	enrollments, err := s.store.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]EnrolledCourseView, len(enrollments))
	for i, e := range enrollments {
		views[i] = EnrolledCourseView{
			CourseID:    e.CourseID,
			Title:       e.Course.Title,
			Description: e.Course.Description,
			Image:       e.Course.Image,
			Category:    e.Course.Category,
			Instructor:  e.Course.Instructor,
			Progress:    e.Progress,
			Status:      string(e.Status),
			EnrolledAt:  e.EnrolledAt,
		}
	}
	return views, nil
}
