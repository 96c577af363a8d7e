package db

import (
	"context"

	"feedback/models"

	"gorm.io/gorm"
)

// Repository is the persistence boundary for users and their feedback.
type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	// DeleteUser removes the user and every feedback row they own.
	DeleteUser(ctx context.Context, username string) error
	SetAdmin(ctx context.Context, username string, isAdmin bool) error

	CreateFeedback(ctx context.Context, feedback *models.Feedback) error
	FeedbackByID(ctx context.Context, id uint) (*models.Feedback, error)
	FeedbackForUser(ctx context.Context, username string) ([]models.Feedback, error)
	UpdateFeedback(ctx context.Context, feedback *models.Feedback) error
	DeleteFeedback(ctx context.Context, id uint) error
}

type Store struct {
	db *gorm.DB
}

var _ Repository = (*Store)(nil)

func NewStore(conn *gorm.DB) *Store {
	return &Store{db: conn}
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return classify(s.db.WithContext(ctx).Create(user).Error, "creating user")
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, classify(err, "loading user")
	}
	return &user, nil
}

func (s *Store) DeleteUser(ctx context.Context, username string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ?", username).Delete(&models.Feedback{}).Error; err != nil {
			return classify(err, "deleting feedback of user")
		}
		result := tx.Where("username = ?", username).Delete(&models.User{})
		if result.Error != nil {
			return classify(result.Error, "deleting user")
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *Store) SetAdmin(ctx context.Context, username string, isAdmin bool) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Update("is_admin", isAdmin)
	if result.Error != nil {
		return classify(result.Error, "updating admin flag")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreateFeedback(ctx context.Context, feedback *models.Feedback) error {
	return classify(s.db.WithContext(ctx).Create(feedback).Error, "creating feedback")
}

func (s *Store) FeedbackByID(ctx context.Context, id uint) (*models.Feedback, error) {
	var feedback models.Feedback
	if err := s.db.WithContext(ctx).First(&feedback, id).Error; err != nil {
		return nil, classify(err, "loading feedback")
	}
	return &feedback, nil
}

func (s *Store) FeedbackForUser(ctx context.Context, username string) ([]models.Feedback, error) {
	var list []models.Feedback
	err := s.db.WithContext(ctx).Where("username = ?", username).Order("id").Find(&list).Error
	if err != nil {
		return nil, classify(err, "listing feedback")
	}
	return list, nil
}

// UpdateFeedback writes title and content only; ownership never changes.
func (s *Store) UpdateFeedback(ctx context.Context, feedback *models.Feedback) error {
	result := s.db.WithContext(ctx).Model(&models.Feedback{}).Where("id = ?", feedback.ID).
		Updates(map[string]any{"title": feedback.Title, "content": feedback.Content})
	if result.Error != nil {
		return classify(result.Error, "updating feedback")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteFeedback(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Feedback{}, id)
	if result.Error != nil {
		return classify(result.Error, "deleting feedback")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
