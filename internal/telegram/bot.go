// Package telegram exposes the delegation engine over a Telegram bot.
// Plain messages and /task submit work, /status and /cancel manage it, and
// per-user preferences and history live in the memory store.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openmanus/manus/internal/memory"
	"github.com/openmanus/manus/internal/scheduler"
	"github.com/openmanus/manus/pkg/models"
)

const helpText = `I delegate your requests to specialist agents.

/task <description> - submit a task (plain messages work too)
/status <task id> - check on a task
/cancel <task id> - cancel a task
/remember <key> <value> - store a preference
/forget <key> - drop a preference
/prefs - list stored preferences
/history - show recent conversation turns
/history clear - wipe stored conversation turns`

// Engine is the slice of the scheduler the bot needs.
type Engine interface {
	Submit(ctx context.Context, description string) (string, error)
	Status(id string) (models.Task, error)
	Cancel(id string) error
}

// Config holds bot settings.
type Config struct {
	// Token is the bot API token.
	Token string
	// MessagesPerSecond limits outbound sends. Zero means 1/s.
	MessagesPerSecond float64
	// HistoryLimit is how many turns /history replays. Zero means 20.
	HistoryLimit int
}

// Bot runs the Telegram front end over long polling.
type Bot struct {
	api          *tgbotapi.BotAPI
	engine       Engine
	memory       *memory.Store
	limiter      *rate.Limiter
	historyLimit int
	log          *zap.Logger

	mu      sync.Mutex
	running bool
}

// New authenticates the bot. The memory store is optional; without it the
// preference and history commands report as unavailable.
func New(cfg Config, engine Engine, mem *memory.Store, log *zap.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram: bot token is not set")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	mps := cfg.MessagesPerSecond
	if mps <= 0 {
		mps = 1
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 20
	}

	log.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	return &Bot{
		api:          api,
		engine:       engine,
		memory:       mem,
		limiter:      rate.NewLimiter(rate.Limit(mps), 3),
		historyLimit: historyLimit,
		log:          log,
	}, nil
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.New("telegram: bot is already running")
	}
	b.running = true
	b.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.log.Info("telegram bot polling")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.mu.Lock()
			b.running = false
			b.mu.Unlock()
			return nil
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.From.ID, 10)
	text := strings.TrimSpace(msg.Text)
	b.remember(userID, "user", text)

	switch msg.Command() {
	case "start", "help":
		b.reply(ctx, msg.Chat.ID, userID, helpText)
	case "task":
		b.handleTask(ctx, msg.Chat.ID, userID, strings.TrimSpace(msg.CommandArguments()))
	case "status":
		b.handleStatus(ctx, msg.Chat.ID, userID, strings.TrimSpace(msg.CommandArguments()))
	case "cancel":
		b.handleCancel(ctx, msg.Chat.ID, userID, strings.TrimSpace(msg.CommandArguments()))
	case "remember":
		b.handleRemember(ctx, msg.Chat.ID, userID, msg.CommandArguments())
	case "forget":
		b.handleForget(ctx, msg.Chat.ID, userID, strings.TrimSpace(msg.CommandArguments()))
	case "prefs":
		b.handlePrefs(ctx, msg.Chat.ID, userID)
	case "history":
		b.handleHistory(ctx, msg.Chat.ID, userID, strings.TrimSpace(msg.CommandArguments()))
	case "":
		// A bare message is a task submission.
		b.handleTask(ctx, msg.Chat.ID, userID, text)
	default:
		b.reply(ctx, msg.Chat.ID, userID, "Unknown command. Try /help.")
	}
}

func (b *Bot) handleTask(ctx context.Context, chatID int64, userID, description string) {
	if description == "" {
		b.reply(ctx, chatID, userID, "Usage: /task <description>")
		return
	}
	id, err := b.engine.Submit(ctx, description)
	if err != nil {
		b.log.Error("submit failed", zap.Error(err))
		b.reply(ctx, chatID, userID, "Could not submit that task, sorry.")
		return
	}
	b.reply(ctx, chatID, userID, fmt.Sprintf("Working on it. Task ID: %s", id))
	go b.notifyWhenDone(ctx, chatID, userID, id)
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64, userID, id string) {
	if id == "" {
		b.reply(ctx, chatID, userID, "Usage: /status <task id>")
		return
	}
	task, err := b.engine.Status(id)
	if err != nil {
		b.reply(ctx, chatID, userID, fmt.Sprintf("No task with ID %s.", id))
		return
	}
	b.reply(ctx, chatID, userID, renderTask(task))
}

func (b *Bot) handleCancel(ctx context.Context, chatID int64, userID, id string) {
	if id == "" {
		b.reply(ctx, chatID, userID, "Usage: /cancel <task id>")
		return
	}
	switch err := b.engine.Cancel(id); {
	case err == nil:
		b.reply(ctx, chatID, userID, fmt.Sprintf("Cancellation requested for %s.", id))
	case errors.Is(err, scheduler.ErrAlreadyTerminal):
		b.reply(ctx, chatID, userID, fmt.Sprintf("Task %s already finished.", id))
	default:
		b.reply(ctx, chatID, userID, fmt.Sprintf("No task with ID %s.", id))
	}
}

func (b *Bot) handleRemember(ctx context.Context, chatID int64, userID, args string) {
	if b.memory == nil {
		b.reply(ctx, chatID, userID, "Memory is not configured.")
		return
	}
	fields := strings.Fields(args)
	if len(fields) < 2 {
		b.reply(ctx, chatID, userID, "Usage: /remember <key> <value>")
		return
	}
	key, value := fields[0], strings.Join(fields[1:], " ")
	if err := b.memory.SetPreference(userID, key, value); err != nil {
		b.log.Error("set preference failed", zap.Error(err))
		b.reply(ctx, chatID, userID, "Could not store that preference.")
		return
	}
	b.reply(ctx, chatID, userID, fmt.Sprintf("Remembered %s.", key))
}

func (b *Bot) handleForget(ctx context.Context, chatID int64, userID, key string) {
	if b.memory == nil {
		b.reply(ctx, chatID, userID, "Memory is not configured.")
		return
	}
	if key == "" {
		b.reply(ctx, chatID, userID, "Usage: /forget <key>")
		return
	}
	if err := b.memory.DeletePreference(userID, key); err != nil {
		b.log.Error("delete preference failed", zap.Error(err))
		b.reply(ctx, chatID, userID, "Could not drop that preference.")
		return
	}
	b.reply(ctx, chatID, userID, fmt.Sprintf("Forgot %s.", key))
}

func (b *Bot) handlePrefs(ctx context.Context, chatID int64, userID string) {
	if b.memory == nil {
		b.reply(ctx, chatID, userID, "Memory is not configured.")
		return
	}
	prefs, err := b.memory.Preferences(userID)
	if err != nil {
		b.log.Error("list preferences failed", zap.Error(err))
		b.reply(ctx, chatID, userID, "Could not read your preferences.")
		return
	}
	if len(prefs) == 0 {
		b.reply(ctx, chatID, userID, "No preferences stored yet.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Your preferences:\n")
	for key, value := range prefs {
		fmt.Fprintf(&sb, "- %s: %s\n", key, value)
	}
	b.reply(ctx, chatID, userID, sb.String())
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64, userID, arg string) {
	if b.memory == nil {
		b.reply(ctx, chatID, userID, "Memory is not configured.")
		return
	}
	if arg == "clear" {
		if err := b.memory.ClearHistory(userID); err != nil {
			b.log.Error("clear history failed", zap.Error(err))
			b.reply(ctx, chatID, userID, "Could not clear your history.")
			return
		}
		b.reply(ctx, chatID, userID, "History cleared.")
		return
	}
	history, err := b.memory.RecentHistory(userID, b.historyLimit)
	if err != nil {
		b.log.Error("read history failed", zap.Error(err))
		b.reply(ctx, chatID, userID, "Could not read your history.")
		return
	}
	if len(history) == 0 {
		b.reply(ctx, chatID, userID, "No history yet.")
		return
	}
	var sb strings.Builder
	for _, m := range history {
		fmt.Fprintf(&sb, "[%s] %s\n", m.Role, m.Content)
	}
	b.reply(ctx, chatID, userID, sb.String())
}

// notifyWhenDone polls the task and pushes the final result to the chat.
func (b *Bot) notifyWhenDone(ctx context.Context, chatID int64, userID, id string) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	deadline := time.After(30 * time.Minute)

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			b.reply(ctx, chatID, userID, fmt.Sprintf("Task %s is still running; check back with /status.", id))
			return
		case <-ticker.C:
		}

		task, err := b.engine.Status(id)
		if err != nil {
			return
		}
		if !task.Status.Terminal() {
			continue
		}
		b.reply(ctx, chatID, userID, renderTask(task))
		return
	}
}

// reply sends a rate-limited message and records it as an assistant turn.
func (b *Bot) reply(ctx context.Context, chatID int64, userID, text string) {
	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Error("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	b.remember(userID, "assistant", text)
}

func (b *Bot) remember(userID, role, content string) {
	if b.memory == nil {
		return
	}
	if err := b.memory.AppendMessage(userID, role, content); err != nil {
		b.log.Warn("history append failed", zap.Error(err))
	}
}

// renderTask formats a task record for chat.
func renderTask(task models.Task) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task %s: %s\n", task.ID, task.Status)
	if task.AssignedAgentID != "" {
		fmt.Fprintf(&sb, "Agent: %s\n", task.AssignedAgentID)
	}
	switch task.Status {
	case models.TaskStatusCompleted:
		for key, value := range task.Result {
			fmt.Fprintf(&sb, "%s: %v\n", key, value)
		}
	case models.TaskStatusFailed:
		fmt.Fprintf(&sb, "Error: %s\n", task.Error)
	}
	return strings.TrimRight(sb.String(), "\n")
}
