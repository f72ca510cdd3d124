package entity

// UserState состояние пользователя в диалоге с ботом
type UserState string

const (
	StateMainMenu      UserState = "main_menu"      // В главном меню
	StateAwaitingPhoto UserState = "awaiting_photo" // Ожидание фото контейнера
	StateProcessing    UserState = "processing"     // Идёт детекция
)

// User представляет пользователя бота
type User struct {
	ID        int64     // Telegram User ID
	ChatID    int64     // Telegram Chat ID
	State     UserState // Текущее состояние пользователя
	Threshold float64   // Личный порог уверенности, 0 означает порог по умолчанию
	Checks    int       // Сколько изображений пользователь уже проверил
}

// NewUser создаёт нового пользователя с начальным состоянием
func NewUser(userID, chatID int64) *User {
	return &User{
		ID:     userID,
		ChatID: chatID,
		State:  StateMainMenu,
	}
}

// SetState обновляет состояние пользователя
func (u *User) SetState(state UserState) {
	u.State = state
}

// EffectiveThreshold возвращает личный порог или значение по умолчанию.
func (u *User) EffectiveThreshold(fallback float64) float64 {
	if u.Threshold > 0 {
		return u.Threshold
	}
	return fallback
}
