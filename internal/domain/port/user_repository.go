package port

import (
	"context"

	"bin-vision/internal/domain/entity"
)

// UserRepository интерфейс хранилища состояний чата
type UserRepository interface {
	// Get возвращает пользователя по ID, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.User, error)

	// Save сохраняет состояние пользователя
	Save(ctx context.Context, user *entity.User) error

	// Count возвращает число известных пользователей
	Count(ctx context.Context) (int, error)
}
