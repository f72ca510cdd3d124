package app

import (
	"context"
	"fmt"

	"bin-vision/internal/domain/entity"
	"bin-vision/internal/domain/port"
)

type UserService struct {
	repo port.UserRepository
}

func NewUserService(repo port.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *UserService) SetState(ctx context.Context, userID, chatID int64, state entity.UserState) (*entity.User, error) {
	return s.update(ctx, userID, chatID, func(u *entity.User) error {
		u.SetState(state)
		return nil
	})
}

// BeginCheck переводит пользователя в ожидание фото.
func (s *UserService) BeginCheck(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateAwaitingPhoto)
}

// Cancel возвращает пользователя в главное меню.
func (s *UserService) Cancel(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.SetState(ctx, userID, chatID, entity.StateMainMenu)
}

// SetThreshold сохраняет личный порог уверенности; 0 сбрасывает его.
func (s *UserService) SetThreshold(ctx context.Context, userID, chatID int64, threshold float64) (*entity.User, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: got %v", entity.ErrInvalidThreshold, threshold)
	}
	return s.update(ctx, userID, chatID, func(u *entity.User) error {
		u.Threshold = threshold
		return nil
	})
}

// FinishCheck засчитывает проверку и возвращает пользователя в главное меню.
func (s *UserService) FinishCheck(ctx context.Context, userID, chatID int64) (*entity.User, error) {
	return s.update(ctx, userID, chatID, func(u *entity.User) error {
		u.Checks++
		u.SetState(entity.StateMainMenu)
		return nil
	})
}

func (s *UserService) update(ctx context.Context, userID, chatID int64, fn func(*entity.User) error) (*entity.User, error) {
	user, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	if err := fn(user); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
