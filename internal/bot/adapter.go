package bot

import (
	"context"
	"fmt"
	"strconv"

	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/pricebot/core/logger"
	coretelegram "github.com/m3rciful/pricebot/core/telegram"
	"github.com/m3rciful/pricebot/core/telegram/callbacks"
	"github.com/m3rciful/pricebot/core/telegram/commands"
	"github.com/m3rciful/pricebot/core/telegram/format"
	"github.com/m3rciful/pricebot/core/telegram/helpers"
	"github.com/m3rciful/pricebot/core/telegram/keyboard"
	"github.com/m3rciful/pricebot/core/telegram/state"
	"github.com/m3rciful/pricebot/core/telegram/ui"
	"github.com/m3rciful/pricebot/internal/domain"
)

// UserStore records chat user profiles.
type UserStore interface {
	Upsert(ctx context.Context, u domain.User) error
}

// callbackKinds are the actions reachable from inline keyboards. Each one is
// registered as a callback key; cancel actions additionally carry the row id
// in the payload.
var callbackKinds = []EventKind{
	EventLivePrice,
	EventPriceAlert,
	EventPriceSub,
	EventLiveAgain,
	EventMainMenu,
	EventGTE,
	EventLTE,
	EventNewAlert,
	EventCancelAlert,
	EventNewSub,
	EventCancelSub,
	EventDaily,
	EventWeekly,
	EventMonthly,
}

// Adapter binds the engine to the Telegram surface: it maps updates to
// events, serializes events per user, and renders the engine's replies.
type Adapter struct {
	engine   *Engine
	sessions state.Manager
	users    UserStore
}

// NewAdapter wires the adapter over the engine, session manager, and user store.
func NewAdapter(engine *Engine, sessions state.Manager, users UserStore) *Adapter {
	return &Adapter{engine: engine, sessions: sessions, users: users}
}

// Register binds commands and callback actions onto the registry. A
// registration failure means the action table itself is wrong, so it is
// surfaced instead of silently dropping the handler.
func (a *Adapter) Register(reg *coretelegram.Registry) error {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Open the main menu",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.handleCancel,
		Description: "End the current session",
	})

	for _, kind := range callbackKinds {
		k := kind
		err := reg.RegisterCallback(string(k), func(c tele.Context) error {
			return a.dispatch(c, Event{Kind: k, Payload: callbacks.CallbackPayload(c)})
		})
		if err != nil {
			return fmt.Errorf("register callback %q: %w", k, err)
		}
	}

	ui.Apply(reg, a)
	return nil
}

// InProgress satisfies the text router contract: free text is handed to the
// conversation while the user's session is active.
func (a *Adapter) InProgress(userID int64) bool {
	return a.sessions.InProgress(userID)
}

// HandleText feeds a typed message into the active conversation.
func (a *Adapter) HandleText(c tele.Context) error {
	return a.dispatch(c, Event{Kind: EventText, Text: c.Text()})
}

// UnknownText hints at /start when text arrives outside a conversation.
func (a *Adapter) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return helpers.SendText(c, "Send /start to begin.")
	}
}

// UnknownCallback absorbs button presses whose action is no longer known.
func (a *Adapter) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		_ = c.Respond(&tele.CallbackResponse{Text: "This button has expired."})
		return nil
	}
}

func (a *Adapter) handleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := helpers.BuildContext(c)

	u := domain.User{
		ID:        sender.ID,
		FirstName: sender.FirstName,
		LastName:  optional(sender.LastName),
		Username:  optional(sender.Username),
	}
	if err := a.users.Upsert(ctx, u); err != nil {
		// profile bookkeeping never blocks the conversation
		logger.TG.Warn("profile upsert failed",
			slog.String("event", "start.profile"),
			slog.Int64("user_id", sender.ID),
			slog.String("username", format.DerefString(u.Username, "-")),
			slog.String("err", err.Error()),
		)
	}

	return a.dispatch(c, Event{Kind: EventStart})
}

func (a *Adapter) handleCancel(c tele.Context) error {
	return a.dispatch(c, Event{Kind: EventCancel})
}

// dispatch runs one event through the engine under the user's event lock, so
// a second update for the same user waits instead of observing a session
// mid-transition.
func (a *Adapter) dispatch(c tele.Context, ev Event) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	userID := sender.ID
	ctx := helpers.BuildContext(c)

	return a.sessions.Do(userID, func() error {
		before := a.sessions.Get(userID)
		after, rep, err := a.engine.Handle(ctx, userID, before, ev)
		if err != nil {
			return err
		}

		if after.State == state.StateIdle {
			a.sessions.Clear(userID)
		} else {
			a.sessions.Update(userID, func(s *state.Session) { *s = after })
		}

		ref, tracked := a.render(c, before, rep)
		if tracked && after.State != state.StateIdle {
			a.sessions.Update(userID, func(s *state.Session) {
				s.EditChatID = ref.chatID
				s.EditMessageID = ref.messageID
			})
		}
		return nil
	})
}

type messageRef struct {
	chatID    int64
	messageID int
}

// render delivers the reply. Replies marked EditTracked rewrite the message
// remembered in the session; callback-originated replies edit the pressed
// message in place; everything else is sent as a new message.
func (a *Adapter) render(c tele.Context, before state.Session, rep Reply) (messageRef, bool) {
	markup := buildMarkup(rep.Buttons)

	if rep.EditTracked && before.HasEditRef() {
		stored := tele.StoredMessage{
			MessageID: strconv.Itoa(before.EditMessageID),
			ChatID:    before.EditChatID,
		}
		if _, err := c.Bot().Edit(stored, rep.Text, markup); err == nil {
			return messageRef{}, false
		}
		// the tracked message is gone, deliver fresh instead
	}

	if cb := c.Callback(); cb != nil && cb.Message != nil {
		if err := c.Edit(rep.Text, markup); err == nil {
			if rep.TrackPrompt {
				return messageRef{chatID: cb.Message.Chat.ID, messageID: cb.Message.ID}, true
			}
			return messageRef{}, false
		}
	}

	if rep.TrackPrompt {
		msg, err := c.Bot().Send(c.Recipient(), rep.Text, markup)
		if err != nil || msg == nil {
			return messageRef{}, false
		}
		return messageRef{chatID: msg.Chat.ID, messageID: msg.ID}, true
	}

	_ = helpers.SendText(c, rep.Text, &tele.SendOptions{ReplyMarkup: markup})
	return messageRef{}, false
}

func buildMarkup(rows [][]Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return &tele.ReplyMarkup{}
	}
	converted := make([][]keyboard.InlineBtn, len(rows))
	for i, row := range rows {
		r := make([]keyboard.InlineBtn, len(row))
		for j, b := range row {
			r[j] = keyboard.InlineBtn{Text: b.Label, Unique: string(b.Kind), Data: b.Payload}
		}
		converted[i] = r
	}
	return keyboard.InlineButtonsRows(converted...)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
