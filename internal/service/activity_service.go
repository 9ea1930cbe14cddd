package service

import (
	"errors"
	"fmt"
	"time"

	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"

	"github.com/google/uuid"
)

var ErrInvalidFilter = errors.New("invalid filter")

// ActivityRecorder appends one audit entry for a user.
type ActivityRecorder interface {
	Record(userID uuid.UUID, action string) error
}

type ActivityQuery struct {
	UserID    string
	Action    string
	StartDate string // YYYY-MM-DD
	EndDate   string // YYYY-MM-DD, inclusive
}

type ActivityService interface {
	ActivityRecorder
	GetLogs(q ActivityQuery) ([]model.ActivityLogView, error)
	GetActions() ([]string, error)
	GetUsers() ([]repository.ActivityUser, error)
}

type activityService struct {
	repo repository.ActivityRepository
	loc  *time.Location
	now  func() time.Time
}

func NewActivityService(repo repository.ActivityRepository, loc *time.Location) ActivityService {
	return &activityService{repo: repo, loc: loc, now: time.Now}
}

func (s *activityService) Record(userID uuid.UUID, action string) error {
	return s.repo.Create(&model.ActivityLog{
		UserID:    userID,
		Action:    action,
		CreatedAt: s.now().UTC(),
	})
}

func (s *activityService) GetLogs(q ActivityQuery) ([]model.ActivityLogView, error) {
	filter := repository.ActivityFilter{Action: q.Action}

	if q.UserID != "" {
		id, err := uuid.Parse(q.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: user_id must be a UUID", ErrInvalidFilter)
		}
		filter.UserID = &id
	}
	if q.StartDate != "" {
		start, err := parseDay(q.StartDate, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrInvalidFilter)
		}
		filter.Start = &start
	}
	if q.EndDate != "" {
		end, err := parseDay(q.EndDate, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: end_date must be YYYY-MM-DD", ErrInvalidFilter)
		}
		end = end.AddDate(0, 0, 1)
		filter.End = &end
	}

	logs, err := s.repo.Find(filter)
	if err != nil {
		return nil, err
	}

	views := make([]model.ActivityLogView, len(logs))
	for i, l := range logs {
		views[i] = model.ActivityLogView{
			ID:        l.ID,
			UserID:    l.UserID,
			Action:    l.Action,
			CreatedAt: l.CreatedAt,
		}
		if l.User != nil {
			views[i].UserName = l.User.FullName
			views[i].Role = l.User.RoleCode()
		}
	}
	return views, nil
}

func (s *activityService) GetActions() ([]string, error) {
	return s.repo.DistinctActions()
}

func (s *activityService) GetUsers() ([]repository.ActivityUser, error) {
	return s.repo.DistinctUsers()
}

func parseDay(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", value, loc)
}
