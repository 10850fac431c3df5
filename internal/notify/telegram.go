package notify

import (
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UserDirectory is the read-only profile lookup the Telegram sender needs
// to map a user ID to a Telegram chat.
type UserDirectory interface {
	TelegramIDFor(userID string) (string, error)
}

// TelegramSender delivers system messages to users who linked a Telegram
// account. Users without one are skipped silently — Redis events still
// carry the notification for the polling surface.
type TelegramSender struct {
	BotAPI    *tgbotapi.BotAPI
	Directory UserDirectory
}

// NewTelegramSender авторизує бота й повертає sender.
func NewTelegramSender(token string, dir UserDirectory) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("✅ Authorized on account %s", bot.Self.UserName)

	return &TelegramSender{BotAPI: bot, Directory: dir}, nil
}

// Send delivers one intent as a plain Telegram message.
func (t *TelegramSender) Send(intent Intent) error {
	if intent.Recipient == "" {
		return nil // broadcast-інтенти живуть лише в Redis
	}

	tgID, err := t.Directory.TelegramIDFor(intent.Recipient)
	if err != nil || tgID == "" {
		return nil // користувач без Telegram — не помилка
	}

	chatID, _ := strconv.ParseInt(tgID, 10, 64)
	if chatID == 0 {
		return nil
	}

	msg := tgbotapi.NewMessage(chatID, intent.Body)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err = t.BotAPI.Send(msg)
	return err
}
