package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/pricebot/core/logger"
	"github.com/m3rciful/pricebot/core/telegram/state"
	"github.com/m3rciful/pricebot/internal/domain"
)

// ErrSessionCorrupted marks a flow step whose required transient fields are
// missing. The session cannot be repaired; the user has to restart.
var ErrSessionCorrupted = errors.New("session corrupted")

// Resolver maps free-text queries to currency records.
type Resolver interface {
	Resolve(ctx context.Context, query string) (domain.CurrencyRecord, bool, error)
}

// AlertStore is the alert registry slice the engine needs.
type AlertStore interface {
	Upsert(ctx context.Context, userID int64, symbol string, target decimal.Decimal, cond domain.Condition) error
	ListByUser(ctx context.Context, userID int64) ([]domain.Alert, error)
	Delete(ctx context.Context, userID, id int64) (bool, error)
}

// SubscriptionStore is the subscription registry slice the engine needs.
type SubscriptionStore interface {
	Upsert(ctx context.Context, userID int64, symbol string, freq domain.Frequency) error
	ListByUser(ctx context.Context, userID int64) ([]domain.Subscription, error)
	Delete(ctx context.Context, userID, id int64) (bool, error)
}

type transition struct {
	state state.State
	event EventKind
}

type handlerFunc func(e *Engine, ctx context.Context, userID int64, sess *state.Session, ev Event) (Reply, error)

// Engine drives the conversation flows. It holds no per-user state of its
// own; the session passed to Handle carries everything between turns.
type Engine struct {
	directory Resolver
	alerts    AlertStore
	subs      SubscriptionStore

	table map[transition]handlerFunc
}

// NewEngine builds the engine and its transition table. Table construction
// fails if any entry references an unknown state or event, or if the same
// pair is bound twice.
func NewEngine(directory Resolver, alerts AlertStore, subs SubscriptionStore) (*Engine, error) {
	e := &Engine{
		directory: directory,
		alerts:    alerts,
		subs:      subs,
	}
	table, err := buildTable()
	if err != nil {
		return nil, err
	}
	e.table = table
	return e, nil
}

func buildTable() (map[transition]handlerFunc, error) {
	knownStates := make(map[state.State]bool, len(allStates))
	for _, s := range allStates {
		knownStates[s] = true
	}
	knownEvents := make(map[EventKind]bool, len(allEvents))
	for _, ev := range allEvents {
		knownEvents[ev] = true
	}

	table := make(map[transition]handlerFunc)
	var err error
	add := func(st state.State, ev EventKind, h handlerFunc) {
		if err != nil {
			return
		}
		if !knownStates[st] {
			err = fmt.Errorf("fsm: transition references unknown state %q", st)
			return
		}
		if !knownEvents[ev] {
			err = fmt.Errorf("fsm: transition references unknown event %q", ev)
			return
		}
		key := transition{state: st, event: ev}
		if _, dup := table[key]; dup {
			err = fmt.Errorf("fsm: duplicate transition (%s, %s)", st, ev)
			return
		}
		table[key] = h
	}

	// Main menu.
	add(StateMainMenu, EventLivePrice, (*Engine).startLiveFlow)
	add(StateMainMenu, EventPriceAlert, (*Engine).startAlertFlow)
	add(StateMainMenu, EventPriceSub, (*Engine).startSubFlow)

	// Live lookup.
	add(StateAwaitingLiveCurrency, EventText, (*Engine).handleLiveCurrency)
	add(StateAwaitingLiveCurrency, EventMainMenu, (*Engine).goMainMenu)
	add(StateShowingLiveResult, EventLiveAgain, (*Engine).startLiveFlow)
	add(StateShowingLiveResult, EventMainMenu, (*Engine).goMainMenu)

	// Alerts.
	add(StateAwaitingAlertCurrency, EventText, (*Engine).handleAlertCurrency)
	add(StateAwaitingAlertCurrency, EventMainMenu, (*Engine).goMainMenu)
	add(StateAwaitingAlertCond, EventGTE, (*Engine).handleAlertCondition)
	add(StateAwaitingAlertCond, EventLTE, (*Engine).handleAlertCondition)
	add(StateAwaitingAlertCond, EventMainMenu, (*Engine).goMainMenu)
	add(StateAwaitingAlertTarget, EventText, (*Engine).handleAlertTarget)
	add(StateAwaitingAlertTarget, EventMainMenu, (*Engine).goMainMenu)
	add(StateManagingAlerts, EventNewAlert, (*Engine).promptAlertCurrency)
	add(StateManagingAlerts, EventCancelAlert, (*Engine).handleCancelAlert)
	add(StateManagingAlerts, EventMainMenu, (*Engine).goMainMenu)

	// Subscriptions.
	add(StateAwaitingSubCurrency, EventText, (*Engine).handleSubCurrency)
	add(StateAwaitingSubCurrency, EventMainMenu, (*Engine).goMainMenu)
	add(StateAwaitingSubFrequency, EventDaily, (*Engine).handleSubFrequency)
	add(StateAwaitingSubFrequency, EventWeekly, (*Engine).handleSubFrequency)
	add(StateAwaitingSubFrequency, EventMonthly, (*Engine).handleSubFrequency)
	add(StateAwaitingSubFrequency, EventMainMenu, (*Engine).goMainMenu)
	add(StateManagingSubs, EventNewSub, (*Engine).promptSubCurrency)
	add(StateManagingSubs, EventCancelSub, (*Engine).handleCancelSub)
	add(StateManagingSubs, EventMainMenu, (*Engine).goMainMenu)

	if err != nil {
		return nil, err
	}
	return table, nil
}

// Handle applies one event to the session and returns the updated session
// with the rendering instruction. Restart and cancel work from any state.
// A (state, event) pair without a table entry re-renders the current state,
// which tolerates stale button presses arriving after the flow has moved on.
func (e *Engine) Handle(ctx context.Context, userID int64, sess state.Session, ev Event) (state.Session, Reply, error) {
	switch ev.Kind {
	case EventStart:
		sess = state.Session{State: StateMainMenu}
		return sess, mainMenuReply(), nil
	case EventCancel:
		sess = state.Session{State: state.StateIdle}
		return sess, Reply{Text: "Session ended. Send /start whenever you need me again."}, nil
	}

	if sess.State == state.StateIdle {
		return sess, Reply{Text: "Send /start to begin."}, nil
	}

	h, ok := e.table[transition{state: sess.State, event: ev.Kind}]
	if !ok {
		logger.FSM.Debug("unmodeled event, re-rendering",
			slog.String("event", "fsm.rerender"),
			slog.Int64("user_id", userID),
			slog.String("state", string(sess.State)),
			slog.String("kind", string(ev.Kind)),
		)
		rep, err := e.renderState(ctx, userID, sess)
		return sess, rep, err
	}

	rep, err := h(e, ctx, userID, &sess, ev)
	if errors.Is(err, ErrSessionCorrupted) {
		logger.FSM.Error("session corrupted, ending session",
			slog.String("event", "fsm.corrupted"),
			slog.Int64("user_id", userID),
			slog.String("state", string(sess.State)),
		)
		sess = state.Session{State: state.StateIdle}
		return sess, Reply{Text: "⚠️ Something went wrong with this conversation. Send /start to begin again."}, nil
	}
	return sess, rep, err
}

// renderState redraws the current state without changing it. Rendering the
// same state twice against the same stored data produces identical output.
func (e *Engine) renderState(ctx context.Context, userID int64, sess state.Session) (Reply, error) {
	switch sess.State {
	case StateAwaitingLiveCurrency:
		return promptReply("Send the symbol or name of the currency you want the price of.", false), nil
	case StateShowingLiveResult:
		return Reply{
			Text: "Use the buttons below.",
			Buttons: [][]Button{
				{btn("🔄 Another currency", EventLiveAgain)},
				{btn("🏠 Main menu", EventMainMenu)},
			},
		}, nil
	case StateAwaitingAlertCurrency:
		return promptReply("Send the symbol or name of the currency to set an alert for.", false), nil
	case StateAwaitingAlertCond:
		return conditionPrompt(sess.PendingSymbol), nil
	case StateAwaitingAlertTarget:
		return targetPrompt(sess.PendingSymbol, domain.Condition(sess.PendingCondition)), nil
	case StateManagingAlerts:
		return e.alertList(ctx, userID, "")
	case StateAwaitingSubCurrency:
		return promptReply("Send the symbol or name of the currency to subscribe to.", false), nil
	case StateAwaitingSubFrequency:
		return frequencyPrompt(sess.PendingSymbol), nil
	case StateManagingSubs:
		return e.subList(ctx, userID, "")
	default:
		return mainMenuReply(), nil
	}
}

func (e *Engine) goMainMenu(_ context.Context, _ int64, sess *state.Session, _ Event) (Reply, error) {
	*sess = state.Session{State: StateMainMenu}
	return mainMenuReply(), nil
}

func (e *Engine) startLiveFlow(_ context.Context, _ int64, sess *state.Session, _ Event) (Reply, error) {
	*sess = state.Session{State: StateAwaitingLiveCurrency}
	return promptReply("Send the symbol or name of the currency you want the price of.", false), nil
}

func (e *Engine) handleLiveCurrency(ctx context.Context, _ int64, sess *state.Session, ev Event) (Reply, error) {
	rec, ok, err := e.directory.Resolve(ctx, ev.Text)
	if err != nil {
		return promptReply("Prices are temporarily unavailable. Try again in a moment.", false), nil
	}
	if !ok {
		return promptReply("❓ I don't know that currency. Try another symbol or name.", false), nil
	}
	sess.State = StateShowingLiveResult
	return recordReply(rec), nil
}

// startAlertFlow routes to the management list when the user already has
// alerts, otherwise straight into creating the first one.
func (e *Engine) startAlertFlow(ctx context.Context, userID int64, sess *state.Session, ev Event) (Reply, error) {
	alerts, err := e.alerts.ListByUser(ctx, userID)
	if err != nil {
		return e.storageDegrade(err), nil
	}
	if len(alerts) == 0 {
		return e.promptAlertCurrency(ctx, userID, sess, ev)
	}
	*sess = state.Session{State: StateManagingAlerts}
	return alertListReply(alerts), nil
}

func (e *Engine) promptAlertCurrency(_ context.Context, _ int64, sess *state.Session, _ Event) (Reply, error) {
	*sess = state.Session{State: StateAwaitingAlertCurrency}
	return promptReply("Send the symbol or name of the currency to set an alert for.", true), nil
}

// handleAlertCurrency resolves the typed currency. An unknown currency
// resets the whole flow back to the main menu instead of re-prompting.
func (e *Engine) handleAlertCurrency(ctx context.Context, _ int64, sess *state.Session, ev Event) (Reply, error) {
	rec, ok, err := e.directory.Resolve(ctx, ev.Text)
	if err != nil {
		return e.storageDegrade(err), nil
	}
	if !ok {
		*sess = state.Session{State: StateMainMenu}
		rep := mainMenuReply()
		rep.Text = "❓ I don't know that currency.\n\n" + rep.Text
		return rep, nil
	}
	sess.State = StateAwaitingAlertCond
	sess.PendingSymbol = rec.Symbol
	rep := conditionPrompt(rec.Symbol)
	rep.EditTracked = true
	return rep, nil
}

func (e *Engine) handleAlertCondition(_ context.Context, _ int64, sess *state.Session, ev Event) (Reply, error) {
	sess.State = StateAwaitingAlertTarget
	sess.PendingCondition = string(ev.Kind)
	rep := targetPrompt(sess.PendingSymbol, domain.Condition(ev.Kind))
	rep.EditTracked = true
	return rep, nil
}

// handleAlertTarget parses the typed target, validates the transient fields
// collected by the earlier steps, and writes the armed alert.
func (e *Engine) handleAlertTarget(ctx context.Context, userID int64, sess *state.Session, ev Event) (Reply, error) {
	target, err := decimal.NewFromString(strings.TrimSpace(ev.Text))
	if err != nil || target.IsNegative() {
		rep := targetPrompt(sess.PendingSymbol, domain.Condition(sess.PendingCondition))
		rep.Text = "That does not look like a price. Send a plain number, like 42000.5."
		return rep, nil
	}

	cond := domain.Condition(sess.PendingCondition)
	if sess.PendingSymbol == "" || !cond.Valid() || !sess.HasEditRef() {
		return Reply{}, ErrSessionCorrupted
	}

	if err := e.alerts.Upsert(ctx, userID, sess.PendingSymbol, target, cond); err != nil {
		return e.storageDegrade(err), nil
	}

	*sess = state.Session{State: StateManagingAlerts}
	rep, err := e.alertList(ctx, userID, "✅ Alert saved.\n\n")
	if err != nil {
		return rep, err
	}
	rep.EditTracked = true
	return rep, nil
}

func (e *Engine) handleCancelAlert(ctx context.Context, userID int64, sess *state.Session, ev Event) (Reply, error) {
	id, err := strconv.ParseInt(ev.Payload, 10, 64)
	if err != nil {
		return e.alertList(ctx, userID, "")
	}
	if _, err := e.alerts.Delete(ctx, userID, id); err != nil {
		return e.storageDegrade(err), nil
	}

	alerts, err := e.alerts.ListByUser(ctx, userID)
	if err != nil {
		return e.storageDegrade(err), nil
	}
	if len(alerts) == 0 {
		return e.promptAlertCurrency(ctx, userID, sess, ev)
	}
	return alertListReply(alerts), nil
}

func (e *Engine) startSubFlow(ctx context.Context, userID int64, sess *state.Session, ev Event) (Reply, error) {
	subs, err := e.subs.ListByUser(ctx, userID)
	if err != nil {
		return e.storageDegrade(err), nil
	}
	if len(subs) == 0 {
		return e.promptSubCurrency(ctx, userID, sess, ev)
	}
	*sess = state.Session{State: StateManagingSubs}
	return subListReply(subs), nil
}

func (e *Engine) promptSubCurrency(_ context.Context, _ int64, sess *state.Session, _ Event) (Reply, error) {
	*sess = state.Session{State: StateAwaitingSubCurrency}
	return promptReply("Send the symbol or name of the currency to subscribe to.", true), nil
}

func (e *Engine) handleSubCurrency(ctx context.Context, _ int64, sess *state.Session, ev Event) (Reply, error) {
	rec, ok, err := e.directory.Resolve(ctx, ev.Text)
	if err != nil {
		return e.storageDegrade(err), nil
	}
	if !ok {
		*sess = state.Session{State: StateMainMenu}
		rep := mainMenuReply()
		rep.Text = "❓ I don't know that currency.\n\n" + rep.Text
		return rep, nil
	}
	sess.State = StateAwaitingSubFrequency
	sess.PendingSymbol = rec.Symbol
	rep := frequencyPrompt(rec.Symbol)
	rep.EditTracked = true
	return rep, nil
}

func (e *Engine) handleSubFrequency(ctx context.Context, userID int64, sess *state.Session, ev Event) (Reply, error) {
	freq := domain.Frequency(ev.Kind)
	if sess.PendingSymbol == "" || !freq.Valid() || !sess.HasEditRef() {
		return Reply{}, ErrSessionCorrupted
	}

	if err := e.subs.Upsert(ctx, userID, sess.PendingSymbol, freq); err != nil {
		return e.storageDegrade(err), nil
	}

	*sess = state.Session{State: StateManagingSubs}
	rep, err := e.subList(ctx, userID, "✅ Subscription saved.\n\n")
	if err != nil {
		return rep, err
	}
	rep.EditTracked = true
	return rep, nil
}

func (e *Engine) handleCancelSub(ctx context.Context, userID int64, sess *state.Session, ev Event) (Reply, error) {
	id, err := strconv.ParseInt(ev.Payload, 10, 64)
	if err != nil {
		return e.subList(ctx, userID, "")
	}
	if _, err := e.subs.Delete(ctx, userID, id); err != nil {
		return e.storageDegrade(err), nil
	}

	subs, err := e.subs.ListByUser(ctx, userID)
	if err != nil {
		return e.storageDegrade(err), nil
	}
	if len(subs) == 0 {
		return e.promptSubCurrency(ctx, userID, sess, ev)
	}
	return subListReply(subs), nil
}

func (e *Engine) alertList(ctx context.Context, userID int64, prefix string) (Reply, error) {
	alerts, err := e.alerts.ListByUser(ctx, userID)
	if err != nil {
		return e.storageDegrade(err), nil
	}
	rep := alertListReply(alerts)
	rep.Text = prefix + rep.Text
	return rep, nil
}

func (e *Engine) subList(ctx context.Context, userID int64, prefix string) (Reply, error) {
	subs, err := e.subs.ListByUser(ctx, userID)
	if err != nil {
		return e.storageDegrade(err), nil
	}
	rep := subListReply(subs)
	rep.Text = prefix + rep.Text
	return rep, nil
}

func (e *Engine) storageDegrade(err error) Reply {
	logger.FSM.Error("storage operation failed",
		slog.String("event", "fsm.storage"),
		slog.String("err", err.Error()),
	)
	return Reply{
		Text:    "Something went wrong on my side. Try again in a moment.",
		Buttons: [][]Button{{btn("🏠 Main menu", EventMainMenu)}},
	}
}
