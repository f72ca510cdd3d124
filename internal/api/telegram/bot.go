package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	app "bin-vision/internal/application"
	"bin-vision/internal/domain/entity"
	"bin-vision/internal/infrastructure/imaging"
)

const (
	msgStart = `👋 Hi! I detect waste bins and tell whether they are full or empty.

📸 Send me a photo of a bin and I will reply with the detection result.

📋 Commands:
/check — start a check
/threshold 0.5 — set your confidence threshold
/help — help
/cancel — cancel the current operation`

	msgHelp = `ℹ️ How to use the bot:

1️⃣ Send a photo of a bin
2️⃣ The bot runs the detection model
3️⃣ You get the photo with boxes and a short verdict

💡 Tips:
• Shoot in good light
• Keep the whole bin in the frame

📋 Commands:
/check — start a check
/threshold <0..1> — confidence threshold (0 resets it)
/cancel — cancel the operation`

	msgAwaitingPhoto   = "📸 Send a photo of the bin to check."
	msgCancelled       = "❌ Operation cancelled. Send /check to start a new one."
	msgSendPhoto       = "📸 Please send a photo of the bin."
	msgUnknownCommand  = "❓ Unknown command. Use /help."
	msgProcessing      = "⏳ Processing the image..."
	msgInvalidImage    = "⚠️ This file is not a readable image. Try another photo."
	msgProcessingError = "⚠️ Could not process the image. Try another photo."
	msgThresholdUsage  = "Usage: /threshold 0.5 (a number between 0 and 1, 0 resets to the default)"
)

// botAPI описывает часть tgbotapi.BotAPI, которой пользуется бот.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot представляет Telegram-бота
type Bot struct {
	api              botAPI
	users            *app.UserService
	predictions      *app.PredictionService
	client           *http.Client
	defaultThreshold float64
	log              logrus.FieldLogger
}

// NewBot создаёт нового бота
func NewBot(token string, users *app.UserService, predictions *app.PredictionService, defaultThreshold float64, log logrus.FieldLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	log.WithField("account", api.Self.UserName).Info("Telegram bot authorized")

	return newBot(api, users, predictions, http.DefaultClient, defaultThreshold, log), nil
}

func newBot(api botAPI, users *app.UserService, predictions *app.PredictionService, client *http.Client, defaultThreshold float64, log logrus.FieldLogger) *Bot {
	return &Bot{
		api:              api,
		users:            users,
		predictions:      predictions,
		client:           client,
		defaultThreshold: defaultThreshold,
		log:              log.WithField("component", "telegram"),
	}
}

// Run запускает основной цикл обработки сообщений до отмены контекста
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}

	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.log.WithError(err).Error("Error getting user")
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	// Обработка фото и изображений, отправленных файлом
	if fileID, ok := imageFileID(msg); ok {
		b.handlePhoto(ctx, msg, user, fileID)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	var err error
	switch msg.Command() {
	case "start":
		_, err = b.users.Cancel(ctx, user.ID, user.ChatID)
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "check":
		_, err = b.users.BeginCheck(ctx, user.ID, user.ChatID)
		b.sendMessage(msg.Chat.ID, msgAwaitingPhoto)

	case "cancel":
		_, err = b.users.Cancel(ctx, user.ID, user.ChatID)
		b.sendMessage(msg.Chat.ID, msgCancelled)

	case "threshold":
		b.handleThreshold(ctx, msg, user)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}

	if err != nil {
		b.log.WithError(err).Error("Error saving user state")
	}
}

func (b *Bot) handleThreshold(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	v, err := strconv.ParseFloat(strings.TrimSpace(msg.CommandArguments()), 64)
	if err != nil {
		b.sendMessage(msg.Chat.ID, msgThresholdUsage)
		return
	}
	updated, err := b.users.SetThreshold(ctx, user.ID, user.ChatID, v)
	if err != nil {
		b.sendMessage(msg.Chat.ID, msgThresholdUsage)
		return
	}
	b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Confidence threshold set to %.2f", updated.EffectiveThreshold(b.defaultThreshold)))
}

// handlePhoto скачивает изображение, прогоняет конвейер и отвечает размеченным фото
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message, user *entity.User, fileID string) {
	if _, err := b.users.SetState(ctx, user.ID, user.ChatID, entity.StateProcessing); err != nil {
		b.log.WithError(err).Error("Error saving user state")
	}
	defer func() {
		if _, err := b.users.FinishCheck(ctx, user.ID, user.ChatID); err != nil {
			b.log.WithError(err).Error("Error saving user state")
		}
	}()

	b.sendMessage(msg.Chat.ID, msgProcessing)

	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		b.log.WithError(err).Error("Error downloading photo")
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	img, _, err := imaging.Decode(data)
	if err != nil {
		b.sendMessage(msg.Chat.ID, msgInvalidImage)
		return
	}

	res, err := b.predictions.Predict(ctx, img, user.EffectiveThreshold(b.defaultThreshold))
	if err != nil {
		b.log.WithError(err).Error("Prediction failed")
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}
	if !res.ModelAvailable {
		b.sendMessage(msg.Chat.ID, "⚠️ "+res.Message)
		return
	}

	jpg, err := imaging.EncodeJPEG(res.Image, 90)
	if err != nil {
		b.log.WithError(err).Error("Error encoding result")
		b.sendMessage(msg.Chat.ID, res.Message)
		return
	}

	photo := tgbotapi.NewPhoto(msg.Chat.ID, tgbotapi.FileBytes{Name: "result.jpg", Bytes: jpg})
	photo.Caption = res.Message
	if _, err := b.api.Send(photo); err != nil {
		b.log.WithError(err).Error("Error sending photo")
	}
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).Error("Error sending message")
	}
}

// imageFileID выбирает фото максимального размера или документ-изображение.
func imageFileID(msg *tgbotapi.Message) (string, bool) {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID, true
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID, true
	}
	return "", false
}
