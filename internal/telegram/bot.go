package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"montecarloBot/internal/logger"
)

type Bot struct {
	h   *Handlers
	log *logger.Logger
	ctx context.Context
	wg  sync.WaitGroup
}

// NewBot connects to Telegram and points the webhook at webhookURL. Handlers
// run with ctx, so cancelling it aborts in-flight simulations.
func NewBot(ctx context.Context, token, webhookURL string, deps Deps, log *logger.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	// set webhook
	webhook, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	if _, err := api.Request(webhook); err != nil {
		return nil, err
	}
	log.Infow("telegram: webhook set", "url", webhookURL, "bot", api.Self.UserName)

	return newBot(ctx, api, deps, log), nil
}

func newBot(ctx context.Context, api Sender, deps Deps, log *logger.Logger) *Bot {
	if log == nil {
		log = logger.Nop()
	}
	return &Bot{h: NewHandlers(api, deps, log), log: log, ctx: ctx}
}

// Webhook HTTP handler (registered at /telegram/webhook)
func (b *Bot) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "bad update", 400)
		return
	}
	if update.Message == nil {
		b.log.Debugw("webhook: non-message update received", "update_id", update.UpdateID)
		w.WriteHeader(http.StatusOK)
		return
	}
	fields := []any{"chat_id", update.Message.Chat.ID, "text", update.Message.Text}
	if update.Message.From != nil {
		fields = append(fields, "from", update.Message.From.ID)
	}
	b.log.Infow("webhook: message", fields...)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.h.HandleMessage(b.ctx, update.Message)
	}()
	w.WriteHeader(http.StatusOK)
}

// Wait blocks until every message handler started by the webhook returned.
func (b *Bot) Wait() {
	b.wg.Wait()
}
