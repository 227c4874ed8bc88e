package tg

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"max.ks1230/expenses-bot/internal/logger"
	"max.ks1230/expenses-bot/internal/model/messages"
)

const (
	defaultUpdateOffset = 0
	pollTimeoutSeconds  = 60
	updateTimeout       = 2 * time.Minute
	maxDownloadBytes    = 20 << 20
	parseMode           = tgbotapi.ModeHTML
)

type tokenGetter interface {
	Token() string
}

type updateHandler interface {
	HandleIncomingMessage(ctx context.Context, msg messages.Message) error
	HandleCallback(ctx context.Context, cb messages.Callback) error
}

type Client struct {
	client *tgbotapi.BotAPI
	http   *http.Client
}

func New(tokenGetter tokenGetter) (*Client, error) {
	client, err := tgbotapi.NewBotAPI(tokenGetter.Token())
	if err != nil {
		return nil, errors.Wrap(err, "cannot NewBotApi")
	}
	logger.Info("authorized on telegram", zap.String("bot", client.Self.UserName))
	return &Client{client: client, http: &http.Client{Timeout: time.Minute}}, nil
}

func (c *Client) SendMessage(chatID int64, text string, kb *messages.Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	msg.DisableWebPagePreview = true
	if kb != nil {
		msg.ReplyMarkup = markup(kb)
	}
	sent, err := c.client.Send(msg)
	if err != nil {
		return 0, errors.Wrap(err, "client.Send")
	}
	return sent.MessageID, nil
}

// EditMessage replaces the text of a sent message. A nil keyboard drops its buttons.
func (c *Client) EditMessage(chatID int64, messageID int, text string, kb *messages.Keyboard) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = parseMode
	if kb != nil && !kb.Reply {
		inline := inlineMarkup(kb)
		edit.ReplyMarkup = &inline
	}
	if _, err := c.client.Request(edit); err != nil {
		return errors.Wrap(err, "edit message")
	}
	return nil
}

func (c *Client) DeleteMessage(chatID int64, messageID int) error {
	if _, err := c.client.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return errors.Wrap(err, "delete message")
	}
	return nil
}

func (c *Client) SendPhoto(chatID int64, name string, data []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	photo.Caption = caption
	photo.ParseMode = parseMode
	if _, err := c.client.Send(photo); err != nil {
		return errors.Wrap(err, "send photo")
	}
	return nil
}

func (c *Client) SendDocument(chatID int64, name string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	doc.ParseMode = parseMode
	if _, err := c.client.Send(doc); err != nil {
		return errors.Wrap(err, "send document")
	}
	return nil
}

func (c *Client) AnswerCallback(callbackID, text string) error {
	if _, err := c.client.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return errors.Wrap(err, "answer callback")
	}
	return nil
}

// DownloadFile fetches a file users sent to the bot, such as a voice note.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := c.client.GetFileDirectURL(fileID)
	if err != nil {
		return nil, errors.Wrap(err, "get file url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "download file")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "download file")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	return data, errors.Wrap(err, "download file")
}

// ListenUpdates long-polls Telegram until ctx is done. Each update is handled
// on its own goroutine; the handler serializes updates of the same chat.
func (c *Client) ListenUpdates(ctx context.Context, handler updateHandler) {
	u := tgbotapi.NewUpdate(defaultUpdateOffset)
	u.Timeout = pollTimeoutSeconds

	updates := c.client.GetUpdatesChan(u)

	logger.Info("Start listening for messages")

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			c.client.StopReceivingUpdates()
			logger.Info("Stop listening for messages")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.listenOnce(ctx, update, handler)
			}()
		}
	}
}

func (c *Client) listenOnce(ctx context.Context, update tgbotapi.Update, handler updateHandler) {
	// in-flight updates finish even when shutdown starts
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), updateTimeout)
	defer cancel()

	switch {
	case update.Message != nil && update.Message.From != nil:
		msg := toMessage(update.Message)
		logger.Info("incoming message",
			zap.Int64("userID", msg.UserID),
			zap.String("user", msg.Username),
			zap.Bool("voice", msg.VoiceFileID != ""))
		if err := handler.HandleIncomingMessage(ctx, msg); err != nil {
			logger.Error("error processing message", zap.Int64("userID", msg.UserID), zap.Error(err))
		}
	case update.CallbackQuery != nil:
		cb := toCallback(update.CallbackQuery)
		logger.Info("incoming callback", zap.Int64("userID", cb.UserID), zap.String("data", cb.Data))
		if err := handler.HandleCallback(ctx, cb); err != nil {
			logger.Error("error processing callback", zap.Int64("userID", cb.UserID), zap.Error(err))
		}
	}
}

func toMessage(m *tgbotapi.Message) messages.Message {
	msg := messages.Message{
		ChatID:    m.Chat.ID,
		UserID:    m.From.ID,
		MessageID: m.MessageID,
		Username:  m.From.UserName,
		FirstName: m.From.FirstName,
		Text:      m.Text,
	}
	switch {
	case m.Voice != nil:
		msg.VoiceFileID, msg.VoiceDuration = m.Voice.FileID, m.Voice.Duration
	case m.Audio != nil:
		msg.VoiceFileID, msg.VoiceDuration = m.Audio.FileID, m.Audio.Duration
	}
	return msg
}

func toCallback(q *tgbotapi.CallbackQuery) messages.Callback {
	cb := messages.Callback{
		ID:        q.ID,
		UserID:    q.From.ID,
		Username:  q.From.UserName,
		FirstName: q.From.FirstName,
		Data:      q.Data,
	}
	if q.Message != nil {
		cb.ChatID = q.Message.Chat.ID
		cb.MessageID = q.Message.MessageID
	}
	return cb
}

func markup(kb *messages.Keyboard) any {
	if kb.Reply {
		rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Rows))
		for _, row := range kb.Rows {
			buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, tgbotapi.NewKeyboardButton(b.Text))
			}
			rows = append(rows, buttons)
		}
		reply := tgbotapi.NewReplyKeyboard(rows...)
		reply.ResizeKeyboard = true
		return reply
	}
	return inlineMarkup(kb)
}

func inlineMarkup(kb *messages.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
