package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"cart-meal-planner/internal/cart"
	"cart-meal-planner/internal/config"
	"cart-meal-planner/internal/metrics"
	"cart-meal-planner/internal/planner"
	"cart-meal-planner/internal/schedule"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// Sender is the part of the Telegram API the bot talks to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// UsageReader reports generator token usage.
type UsageReader interface {
	GetDailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
}

// Bot is the summary view: a chat surface over the same week plans the
// planning view edits.
type Bot struct {
	api      Sender
	svc      *planner.Service
	sessions *SessionRepository
	usage    UsageReader
	health   func() metrics.Health
	cfg      *config.Config
	now      func() time.Time

	background sync.WaitGroup
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, svc *planner.Service, sessions *SessionRepository, usage UsageReader, health func() metrics.Health) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	webhookURL := cfg.TelegramWebhookURL
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", webhookURL, err)
	}
	resp, err := bot.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", webhookURL, err)
	}
	log.Printf("Webhook set response: %s", resp.Description)

	return newBot(bot, cfg, svc, sessions, usage, health), nil
}

func newBot(api Sender, cfg *config.Config, svc *planner.Service, sessions *SessionRepository, usage UsageReader, health func() metrics.Health) *Bot {
	return &Bot{
		api:      api,
		svc:      svc,
		sessions: sessions,
		usage:    usage,
		health:   health,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WebhookHandler mounts the webhook on a Fiber router.
func (b *Bot) WebhookHandler() fiber.Handler {
	return adaptor.HTTPHandlerFunc(b.handleWebhook)
}

// Wait blocks until background regeneration watchers have reported.
func (b *Bot) Wait() {
	b.background.Wait()
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Printf("Error parsing update: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	go b.HandleUpdate(context.Background(), update)
}

// HandleUpdate processes one update from an allowed user.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if q := update.CallbackQuery; q != nil {
		if q.From == nil || q.Message == nil || !b.cfg.IsTelegramUserAllowed(q.From.ID) {
			return
		}
		b.handleCallbackQuery(ctx, q)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	if !b.cfg.IsTelegramUserAllowed(msg.From.ID) {
		log.Printf("⚠️ Unauthorized access attempt from UserID: %d (@%s)", msg.From.ID, msg.From.UserName)
		return
	}

	b.processMessage(ctx, msg)
}

const helpText = `🧑‍🍳 *Cart Meal Planner*

Send your cart, one item per line (e.g. ` + "`2 lb chicken breast`" + `), to start a week.

/plan show the week
/week next|current|YYYY-MM-DD switch week
/generate [meals] fill the week from the cart
/lock <day> <meal|snack> lock or unlock a slot
/clear <day> <meal|snack> empty a slot
/move <day> <type> <day> <type> move or swap a meal
/regen refresh every unlocked meal
/cancel stop a running refresh
/undo revert the last change
/unlockall release every lock
/reset confirm start the week over
/replace <cart lines> replace the cart`

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	owner := ownerFor(msg.From.ID)

	if !msg.IsCommand() {
		b.importCart(ctx, chatID, owner, msg.Text, false)
		return
	}

	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		if err := b.sessions.Delete(ctx, chatID); err != nil {
			log.Printf("Failed to reset session for chat %d: %v", chatID, err)
		}
		b.send(chatID, helpText)
	case "help":
		b.send(chatID, helpText)
	case "plan":
		b.showPlan(ctx, chatID, owner)
	case "week":
		b.switchWeek(ctx, chatID, owner, args)
	case "cart":
		b.importCart(ctx, chatID, owner, msg.CommandArguments(), false)
	case "replace":
		b.importCart(ctx, chatID, owner, msg.CommandArguments(), true)
	case "generate":
		requested := 0
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				b.send(chatID, "Usage: /generate [number of meals]")
				return
			}
			requested = n
		}
		b.generate(ctx, chatID, owner, requested, false)
	case "lock", "clear":
		b.slotCommand(ctx, chatID, owner, msg.Command(), args)
	case "move":
		b.moveCommand(ctx, chatID, owner, args)
	case "unlockall":
		b.clearLocks(ctx, chatID, owner, false)
	case "regen":
		b.regenerate(ctx, chatID, owner)
	case "cancel":
		b.cancelRegeneration(ctx, chatID, owner)
	case "undo":
		b.withSession(ctx, chatID, owner, func(s *Session) {
			b.write(ctx, chatID, s, "", func(opts planner.WriteOptions) (planner.View, string, error) {
				v, err := b.svc.Undo(ctx, s.ref(), opts)
				return v, "↩️ Undone.", err
			})
		})
	case "reset":
		b.reset(ctx, chatID, owner, len(args) > 0 && strings.EqualFold(args[0], "confirm"))
	case "stats", "metrics":
		b.handleStats(ctx, chatID, msg.From.ID)
	default:
		b.send(chatID, "Unknown command. Send /help for the list.")
	}
}

func ownerFor(userID int64) string {
	return fmt.Sprintf("tg:%d", userID)
}

// defaultWeek is the current week on weekdays and the coming one at the
// weekend, when the cart is usually bought.
func defaultWeek(now time.Time) time.Time {
	if wd := now.UTC().Weekday(); wd == time.Saturday || wd == time.Sunday {
		return schedule.WeekOf(now.AddDate(0, 0, 7))
	}
	return schedule.WeekOf(now)
}

func (s *Session) ref() planner.PlanRef {
	return planner.PlanRef{Owner: s.Owner, WeekOf: s.WeekOf}
}

// session loads the chat's session or starts one on the default week at the
// plan's current version.
func (b *Bot) session(ctx context.Context, chatID int64, owner string) (*Session, error) {
	s, err := b.sessions.GetActive(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if s != nil && s.Owner == owner {
		return s, nil
	}

	s = &Session{ChatID: chatID, Owner: owner, WeekOf: defaultWeek(b.now())}
	if err := b.syncVersion(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (b *Bot) syncVersion(ctx context.Context, s *Session) error {
	v, err := b.svc.GetPlan(ctx, s.ref())
	switch {
	case err == nil:
		s.SeenVersion = v.Version
	case errors.Is(err, planner.ErrPlanNotFound):
		s.SeenVersion = 0
	default:
		return err
	}
	return nil
}

func (b *Bot) withSession(ctx context.Context, chatID int64, owner string, fn func(s *Session)) {
	s, err := b.session(ctx, chatID, owner)
	if err != nil {
		log.Printf("Failed to load session for chat %d: %v", chatID, err)
		b.send(chatID, "❌ Could not load your week. Try again in a moment.")
		return
	}
	fn(s)
}

func (b *Bot) saveSession(ctx context.Context, s *Session) {
	if err := b.sessions.Save(ctx, s); err != nil {
		log.Printf("Warning: failed to save session for chat %d: %v", s.ChatID, err)
	}
}

// write runs op against the version the chat last saw and shows the result.
// confirmData is the callback payload offered when op needs confirmation.
func (b *Bot) write(ctx context.Context, chatID int64, s *Session, confirmData string, op func(opts planner.WriteOptions) (planner.View, string, error)) {
	opts := planner.WriteOptions{ExpectedVersion: s.SeenVersion, Source: schedule.SourceSummary}
	v, note, err := op(opts)
	if err != nil {
		b.fail(ctx, chatID, s, confirmData, err)
		return
	}
	s.SeenVersion = v.Version
	b.saveSession(ctx, s)
	b.sendSummary(chatID, v, note)
}

func (b *Bot) fail(ctx context.Context, chatID int64, s *Session, confirmData string, err error) {
	var conflict *planner.VersionConflictError
	var confirm *schedule.ConfirmationError
	switch {
	case errors.As(err, &conflict):
		seen := s.SeenVersion
		s.SeenVersion = conflict.Current.Version
		b.saveSession(ctx, s)
		log.Printf("Chat %d wrote %s at stale version %d (now %d)", chatID, s.ref().Key(), seen, conflict.Current.Version)
		note := fmt.Sprintf("⚠️ This week changed in another view (you saw v%d, it is now v%d). Here is the latest; send the command again to apply it.", seen, conflict.Current.Version)
		b.sendSummary(chatID, conflict.Current, note)
	case errors.As(err, &confirm) && confirmData != "":
		slots := make([]string, len(confirm.LockedSlots))
		for i, id := range confirm.LockedSlots {
			slots[i] = id.String()
		}
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("🔒 %s would discard locked slots: %s. Continue?",
			capitalize(confirm.Operation), strings.Join(slots, ", ")))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Yes, continue", confirmData),
				tgbotapi.NewInlineKeyboardButtonData("✋ Keep my locks", "dismiss"),
			),
		)
		b.sendConfig(msg)
	case errors.Is(err, planner.ErrPlanNotFound):
		b.send(chatID, fmt.Sprintf("No plan for the week of %s yet. Send your cart, one item per line, to start it.", s.WeekOf.Format("Jan 2")))
	case errors.Is(err, planner.ErrRegenerationRunning):
		b.send(chatID, "⏳ A refresh is running for this week. Wait for it or /cancel it.")
	default:
		b.send(chatID, "❌ "+escape(err.Error()))
	}
}

func (b *Bot) showPlan(ctx context.Context, chatID int64, owner string) {
	b.withSession(ctx, chatID, owner, func(s *Session) {
		v, err := b.svc.GetPlan(ctx, s.ref())
		if err != nil {
			b.fail(ctx, chatID, s, "", err)
			return
		}
		s.SeenVersion = v.Version
		b.saveSession(ctx, s)
		b.sendSummary(chatID, v, "")
	})
}

func (b *Bot) switchWeek(ctx context.Context, chatID int64, owner string, args []string) {
	b.withSession(ctx, chatID, owner, func(s *Session) {
		target := "current"
		if len(args) > 0 {
			target = strings.ToLower(args[0])
		}
		switch target {
		case "current":
			s.WeekOf = schedule.WeekOf(b.now())
		case "next":
			s.WeekOf = schedule.WeekOf(b.now().AddDate(0, 0, 7))
		case "prev", "previous":
			s.WeekOf = schedule.WeekOf(b.now().AddDate(0, 0, -7))
		default:
			t, err := time.Parse("2006-01-02", target)
			if err != nil {
				b.send(chatID, "Usage: /week next|current|prev|YYYY-MM-DD")
				return
			}
			s.WeekOf = schedule.WeekOf(t)
		}

		if err := b.syncVersion(ctx, s); err != nil {
			b.fail(ctx, chatID, s, "", err)
			return
		}
		b.saveSession(ctx, s)

		v, err := b.svc.GetPlan(ctx, s.ref())
		if err != nil {
			b.fail(ctx, chatID, s, "", err)
			return
		}
		b.sendSummary(chatID, v, "")
	})
}

func (b *Bot) importCart(ctx context.Context, chatID int64, owner, text string, force bool) {
	items, err := cart.ParseText(strings.NewReader(text))
	if err != nil {
		b.send(chatID, "❌ "+escape(err.Error())+"\nSend one item per line, e.g. `2 lb chicken breast`, or /help.")
		return
	}

	b.withSession(ctx, chatID, owner, func(s *Session) {
		v, err := b.svc.CreatePlan(ctx, s.ref(), items, planner.WriteOptions{Force: force, Source: schedule.SourceSummary})
		if errors.Is(err, planner.ErrPlanExists) {
			b.send(chatID, fmt.Sprintf("A plan already exists for the week of %s. Send /replace followed by your cart lines to start over.", s.WeekOf.Format("Jan 2")))
			return
		}
		if errors.Is(err, schedule.ErrConfirmationRequired) {
			b.send(chatID, "🔒 This week has locked slots. Send /unlockall first, then /replace again.")
			return
		}
		if err != nil {
			b.fail(ctx, chatID, s, "", err)
			return
		}
		s.SeenVersion = v.Version
		b.saveSession(ctx, s)
		b.sendSummary(chatID, v, fmt.Sprintf("🛒 Imported %d items. /generate to fill the week.", len(items)))
	})
}

func (b *Bot) generate(ctx context.Context, chatID int64, owner string, requested int, confirmed bool) {
	b.withSession(ctx, chatID, owner, func(s *Session) {
		b.write(ctx, chatID, s, fmt.Sprintf("confirm|generate|%d", requested), func(opts planner.WriteOptions) (planner.View, string, error) {
			opts.ConfirmDestructive = confirmed
			v, report, err := b.svc.GenerateWeek(ctx, s.ref(), requested, opts)
			if err != nil {
				return v, "", err
			}
			return v, reportNote("🧑‍🍳 Week generated", report.Describe(), report.Messages()), nil
		})
	})
}

func (b *Bot) slotCommand(ctx context.Context, chatID int64, owner, command string, args []string) {
	if len(args) != 2 {
		b.send(chatID, fmt.Sprintf("Usage: /%s <day> <meal|snack>", command))
		return
	}
	id, err := schedule.ParseSlotID(args[0], args[1])
	if err != nil {
		b.send(chatID, "❌ "+escape(err.Error()))
		return
	}

	b.withSession(ctx, chatID, owner, func(s *Session) {
		b.write(ctx, chatID, s, "", func(opts planner.WriteOptions) (planner.View, string, error) {
			if command == "clear" {
				v, err := b.svc.ClearSlot(ctx, s.ref(), id, opts)
				return v, fmt.Sprintf("🧹 Cleared %s.", id), err
			}
			v, locked, err := b.svc.ToggleLock(ctx, s.ref(), id, opts)
			if locked {
				return v, fmt.Sprintf("🔒 Locked %s.", id), err
			}
			return v, fmt.Sprintf("🔓 Unlocked %s.", id), err
		})
	})
}

func (b *Bot) moveCommand(ctx context.Context, chatID int64, owner string, args []string) {
	if len(args) != 4 {
		b.send(chatID, "Usage: /move <day> <meal|snack> <day> <meal|snack>")
		return
	}
	from, err := schedule.ParseSlotID(args[0], args[1])
	if err != nil {
		b.send(chatID, "❌ "+escape(err.Error()))
		return
	}
	to, err := schedule.ParseSlotID(args[2], args[3])
	if err != nil {
		b.send(chatID, "❌ "+escape(err.Error()))
		return
	}

	b.withSession(ctx, chatID, owner, func(s *Session) {
		b.write(ctx, chatID, s, "", func(opts planner.WriteOptions) (planner.View, string, error) {
			v, err := b.svc.MoveSlot(ctx, s.ref(), from, to, opts)
			return v, fmt.Sprintf("↔️ Moved %s to %s.", from, to), err
		})
	})
}

func (b *Bot) clearLocks(ctx context.Context, chatID int64, owner string, confirmed bool) {
	b.withSession(ctx, chatID, owner, func(s *Session) {
		b.write(ctx, chatID, s, "confirm|unlockall", func(opts planner.WriteOptions) (planner.View, string, error) {
			opts.ConfirmDestructive = confirmed
			v, err := b.svc.ClearAllLocks(ctx, s.ref(), opts)
			return v, "🔓 All locks released.", err
		})
	})
}

func (b *Bot) reset(ctx context.Context, chatID int64, owner string, confirmed bool) {
	b.withSession(ctx, chatID, owner, func(s *Session) {
		b.write(ctx, chatID, s, "confirm|reset", func(opts planner.WriteOptions) (planner.View, string, error) {
			opts.ConfirmDestructive = confirmed
			v, err := b.svc.ResetWeek(ctx, s.ref(), opts)
			return v, "🧺 Week reset. Everything is back in the cart.", err
		})
	})
}

func (b *Bot) regenerate(ctx context.Context, chatID int64, owner string) {
	b.withSession(ctx, chatID, owner, func(s *Session) {
		opts := planner.WriteOptions{ExpectedVersion: s.SeenVersion, Source: schedule.SourceSummary}
		if _, err := b.svc.StartRegeneration(ctx, s.ref(), opts); err != nil {
			b.fail(ctx, chatID, s, "", err)
			return
		}
		b.send(chatID, "🔄 Refreshing unlocked meals... /cancel to stop.")

		b.background.Add(1)
		go func() {
			defer b.background.Done()
			b.watchRegeneration(chatID, s.ref())
		}()
	})
}

func (b *Bot) watchRegeneration(chatID int64, ref planner.PlanRef) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	st, err := b.svc.WaitRegeneration(ctx, ref)
	if err != nil {
		log.Printf("Stopped watching regeneration of %s: %v", ref.Key(), err)
		return
	}
	v, err := b.svc.GetPlan(ctx, ref)
	if err != nil {
		log.Printf("Failed to load %s after regeneration: %v", ref.Key(), err)
		return
	}

	if s, err := b.sessions.GetActive(ctx, chatID); err == nil && s != nil && s.ref().Key() == ref.Key() {
		s.SeenVersion = v.Version
		b.saveSession(ctx, s)
	}

	head := "🔄 Refresh finished"
	switch {
	case st.Cancelled:
		head = "✋ Refresh cancelled"
	case st.Error != "":
		head = "❌ Refresh stopped"
		b.sendAdminAlert(fmt.Sprintf("⚠️ *Regeneration failed*\nPlan: %s\nError: %s", escape(ref.Key()), escape(st.Error)))
	}
	summary := fmt.Sprintf("%d slot(s) refreshed", len(st.Replaced))
	if len(st.Emptied) > 0 {
		summary += fmt.Sprintf(", %d left empty", len(st.Emptied))
	}
	b.sendSummary(chatID, v, reportNote(head, summary, st.Problems))
}

func (b *Bot) cancelRegeneration(ctx context.Context, chatID int64, owner string) {
	b.withSession(ctx, chatID, owner, func(s *Session) {
		if err := b.svc.CancelRegeneration(s.ref()); err != nil {
			b.send(chatID, "Nothing is refreshing right now.")
			return
		}
		b.send(chatID, "✋ Cancelling... meals refreshed so far are kept.")
	})
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	// Answer callback to remove spinner
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		log.Printf("Failed to answer callback: %v", err)
	}

	chatID := query.Message.Chat.ID
	owner := ownerFor(query.From.ID)
	parts := strings.Split(query.Data, "|")
	if len(parts) < 2 || parts[0] != "confirm" {
		return
	}

	switch parts[1] {
	case "reset":
		b.reset(ctx, chatID, owner, true)
	case "unlockall":
		b.clearLocks(ctx, chatID, owner, true)
	case "generate":
		requested := 0
		if len(parts) > 2 {
			requested, _ = strconv.Atoi(parts[2])
		}
		b.generate(ctx, chatID, owner, requested, true)
	}
}

func (b *Bot) handleStats(ctx context.Context, chatID, userID int64) {
	if userID != b.cfg.AdminTelegramID {
		b.send(chatID, "⛔ *Access Denied*: Admin only.")
		return
	}

	usage, err := b.usage.GetDailyUsage(ctx, 7)
	if err != nil {
		b.send(chatID, "❌ Error fetching metrics.")
		return
	}
	b.send(chatID, formatStats(usage, b.health()))
}

func (b *Bot) sendAdminAlert(text string) {
	if b.cfg.AdminTelegramID == 0 {
		return
	}
	b.send(b.cfg.AdminTelegramID, text)
}

func (b *Bot) sendSummary(chatID int64, v planner.View, note string) {
	text := formatSummary(v)
	if note != "" {
		text = note + "\n\n" + text
	}
	b.send(chatID, text)
}

func (b *Bot) send(chatID int64, text string) {
	b.sendConfig(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendConfig(msg tgbotapi.MessageConfig) {
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Failed to send message to chat %d: %v", msg.ChatID, err)
	}
}
