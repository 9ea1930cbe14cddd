package repository

import (
	"time"

	"go-retail-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActivityFilter struct {
	UserID *uuid.UUID
	Action string
	Start  *time.Time
	End    *time.Time // exclusive
}

type ActivityUser struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
}

type ActivityRepository interface {
	Create(entry *model.ActivityLog) error
	Find(filter ActivityFilter) ([]model.ActivityLog, error)
	DistinctActions() ([]string, error)
	DistinctUsers() ([]ActivityUser, error)
}

type activityRepo struct {
	db *gorm.DB
}

func NewActivityRepo(db *gorm.DB) ActivityRepository {
	return &activityRepo{db}
}

func (r *activityRepo) Create(entry *model.ActivityLog) error {
	return r.db.Create(entry).Error
}

func (r *activityRepo) Find(filter ActivityFilter) ([]model.ActivityLog, error) {
	query := r.db.Preload("User", unscoped).Preload("User.Role").Order("created_at DESC")

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Start != nil {
		query = query.Where("created_at >= ?", *filter.Start)
	}
	if filter.End != nil {
		query = query.Where("created_at < ?", *filter.End)
	}

	var logs []model.ActivityLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *activityRepo) DistinctActions() ([]string, error) {
	var actions []string
	err := r.db.Model(&model.ActivityLog{}).Distinct("action").Order("action ASC").Pluck("action", &actions).Error
	return actions, err
}

func (r *activityRepo) DistinctUsers() ([]ActivityUser, error) {
	var users []ActivityUser
	err := r.db.Table("activity_logs").
		Select("DISTINCT users.id, users.full_name").
		Joins("JOIN users ON users.id = activity_logs.user_id").
		Order("users.full_name ASC").
		Scan(&users).Error
	return users, err
}
