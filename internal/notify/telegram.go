package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	appLog "auracal/internal/log"
	"auracal/internal/model"
)

// maxCaption is Telegram's limit for photo captions.
const maxCaption = 1024

// sender is the subset of *tgbotapi.BotAPI used for delivery.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier pushes the daily digest to a single Telegram chat.
type Notifier struct {
	bot    sender
	chatID int64
}

// NewTelegram connects to the Bot API with token.
func NewTelegram(token string, chatID int64) (*Notifier, error) {
	if token == "" || chatID == 0 {
		return nil, errors.New("notify: telegram token and chat id are required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: connect telegram: %w", err)
	}
	appLog.Info("telegram notifier ready", "bot", bot.Self.UserName, "chat_id", chatID)
	return &Notifier{bot: bot, chatID: chatID}, nil
}

// SendDigest sends text, and when poster is non-empty, the poster image
// followed by the digest as its own message.
func (n *Notifier) SendDigest(ctx context.Context, text string, poster []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(poster) > 0 {
		photo := tgbotapi.NewPhoto(n.chatID, tgbotapi.FileBytes{Name: "poster.png", Bytes: poster})
		if len([]rune(text)) <= maxCaption {
			photo.Caption = text
			if _, err := n.bot.Send(photo); err != nil {
				return fmt.Errorf("notify: send poster: %w", err)
			}
			return nil
		}
		if _, err := n.bot.Send(photo); err != nil {
			return fmt.Errorf("notify: send poster: %w", err)
		}
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("notify: send digest: %w", err)
	}
	return nil
}

// FormatDigest renders the plain-text digest for one day.
func FormatDigest(info model.DailyInfo, countdowns []model.CountdownResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📅 %s %s\n", info.GregorianDate, info.Weekday)
	fmt.Fprintf(&b, "农历 %s", info.LunarDate)
	if info.SolarTerm != nil && *info.SolarTerm != "" {
		fmt.Fprintf(&b, " · %s", *info.SolarTerm)
	}
	b.WriteString("\n")
	if len(info.Festivals) > 0 {
		fmt.Fprintf(&b, "🎉 %s\n", strings.Join(info.Festivals, "、"))
	}

	b.WriteString("\n")
	if info.DaysToWeekend == 0 {
		b.WriteString("今天是周末\n")
	} else {
		fmt.Fprintf(&b, "距离周末还有 %d 天\n", info.DaysToWeekend)
	}
	fmt.Fprintf(&b, "距离%s还有 %d 天\n", info.NextHoliday.Name, info.NextHoliday.DaysRemaining)
	for _, c := range countdowns {
		if c.DaysRemaining == 0 {
			fmt.Fprintf(&b, "今天是%s\n", c.Name)
			continue
		}
		fmt.Fprintf(&b, "距离%s还有 %d 天\n", c.Name, c.DaysRemaining)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "「%s」\n", info.Knowledge.Content)
	attribution := info.Knowledge.Source
	if info.Knowledge.Author != "" {
		attribution = info.Knowledge.Author + "《" + info.Knowledge.Source + "》"
	}
	fmt.Fprintf(&b, "—— %s\n", attribution)

	if len(info.News) > 0 {
		b.WriteString("\n📰 今日新闻\n")
		for i, item := range info.News {
			fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, item.Category, item.Title)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
