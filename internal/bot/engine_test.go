package bot

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/pricebot/core/logger"
	"github.com/m3rciful/pricebot/core/telegram/state"
	"github.com/m3rciful/pricebot/internal/domain"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(nil)
	os.Exit(m.Run())
}

type fakeDirectory map[string]domain.CurrencyRecord

func (d fakeDirectory) Resolve(_ context.Context, query string) (domain.CurrencyRecord, bool, error) {
	rec, ok := d[query]
	return rec, ok, nil
}

type savedAlert struct {
	userID int64
	symbol string
	target decimal.Decimal
	cond   domain.Condition
}

type fakeAlerts struct {
	rows    []domain.Alert
	saved   []savedAlert
	deleted []int64
	listErr error
}

func (f *fakeAlerts) Upsert(_ context.Context, userID int64, symbol string, target decimal.Decimal, cond domain.Condition) error {
	f.saved = append(f.saved, savedAlert{userID: userID, symbol: symbol, target: target, cond: cond})
	return nil
}

func (f *fakeAlerts) ListByUser(_ context.Context, _ int64) ([]domain.Alert, error) {
	return f.rows, f.listErr
}

func (f *fakeAlerts) Delete(_ context.Context, userID, id int64) (bool, error) {
	f.deleted = append(f.deleted, id)
	for i, a := range f.rows {
		if a.ID == id && a.UserID == userID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type savedSub struct {
	userID int64
	symbol string
	freq   domain.Frequency
}

type fakeSubs struct {
	rows    []domain.Subscription
	saved   []savedSub
	deleted []int64
}

func (f *fakeSubs) Upsert(_ context.Context, userID int64, symbol string, freq domain.Frequency) error {
	f.saved = append(f.saved, savedSub{userID: userID, symbol: symbol, freq: freq})
	return nil
}

func (f *fakeSubs) ListByUser(_ context.Context, _ int64) ([]domain.Subscription, error) {
	return f.rows, nil
}

func (f *fakeSubs) Delete(_ context.Context, userID, id int64) (bool, error) {
	f.deleted = append(f.deleted, id)
	for i, s := range f.rows {
		if s.ID == id && s.UserID == userID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func btcDirectory() fakeDirectory {
	return fakeDirectory{
		"BTC": {Symbol: "BTC", EnglishName: "Bitcoin", Price: decimal.NewFromInt(4500000)},
	}
}

func newTestEngine(t *testing.T, alerts *fakeAlerts, subs *fakeSubs) *Engine {
	t.Helper()
	e, err := NewEngine(btcDirectory(), alerts, subs)
	require.NoError(t, err)
	return e
}

const testUser int64 = 42

func TestTableConstructionValidates(t *testing.T) {
	_, err := NewEngine(btcDirectory(), &fakeAlerts{}, &fakeSubs{})
	require.NoError(t, err)
}

func TestStartEntersMainMenuFromAnywhere(t *testing.T) {
	e := newTestEngine(t, &fakeAlerts{}, &fakeSubs{})

	for _, from := range allStates {
		sess, rep, err := e.Handle(context.Background(), testUser,
			state.Session{State: from, PendingSymbol: "BTC"}, Event{Kind: EventStart})
		require.NoError(t, err)
		assert.Equal(t, StateMainMenu, sess.State)
		assert.Empty(t, sess.PendingSymbol, "restart clears transient fields")
		assert.NotEmpty(t, rep.Buttons)
	}
}

func TestCancelEndsSession(t *testing.T) {
	e := newTestEngine(t, &fakeAlerts{}, &fakeSubs{})

	sess, _, err := e.Handle(context.Background(), testUser,
		state.Session{State: StateAwaitingAlertTarget, PendingSymbol: "BTC"}, Event{Kind: EventCancel})
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, sess.State)
}

func TestLiveLookupFlow(t *testing.T) {
	e := newTestEngine(t, &fakeAlerts{}, &fakeSubs{})

	sess, rep, err := e.Handle(context.Background(), testUser,
		state.Session{State: StateMainMenu}, Event{Kind: EventLivePrice})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingLiveCurrency, sess.State)

	sess, rep, err = e.Handle(context.Background(), testUser, sess, Event{Kind: EventText, Text: "BTC"})
	require.NoError(t, err)
	assert.Equal(t, StateShowingLiveResult, sess.State)
	assert.Contains(t, rep.Text, "Bitcoin")
	assert.Contains(t, rep.Text, "4500000")

	sess, _, err = e.Handle(context.Background(), testUser, sess, Event{Kind: EventLiveAgain})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingLiveCurrency, sess.State)
}

func TestLiveLookupUnknownCurrencyStays(t *testing.T) {
	e := newTestEngine(t, &fakeAlerts{}, &fakeSubs{})

	sess, rep, err := e.Handle(context.Background(), testUser,
		state.Session{State: StateAwaitingLiveCurrency}, Event{Kind: EventText, Text: "xyzabc"})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingLiveCurrency, sess.State, "live lookup re-prompts in place")
	assert.Contains(t, rep.Text, "don't know")
}

func TestAlertUnknownCurrencyResetsToMainMenu(t *testing.T) {
	e := newTestEngine(t, &fakeAlerts{}, &fakeSubs{})

	sess, rep, err := e.Handle(context.Background(), testUser,
		state.Session{State: StateAwaitingAlertCurrency}, Event{Kind: EventText, Text: "xyzabc"})
	require.NoError(t, err)
	assert.Equal(t, StateMainMenu, sess.State, "alert flow resets instead of retrying")
	assert.Contains(t, rep.Text, "don't know")
}

func TestAlertFlowEndToEnd(t *testing.T) {
	alerts := &fakeAlerts{}
	e := newTestEngine(t, alerts, &fakeSubs{})

	// no existing alerts: straight into creation
	sess, rep, err := e.Handle(context.Background(), testUser,
		state.Session{State: StateMainMenu}, Event{Kind: EventPriceAlert})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingAlertCurrency, sess.State)
	assert.True(t, rep.TrackPrompt, "the prompt message is remembered for later edits")

	// transport records the prompt message
	sess.EditChatID = 42
	sess.EditMessageID = 1001

	sess, rep, err = e.Handle(context.Background(), testUser, sess, Event{Kind: EventText, Text: "BTC"})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingAlertCond, sess.State)
	assert.Equal(t, "BTC", sess.PendingSymbol)
	assert.True(t, rep.EditTracked)

	sess, _, err = e.Handle(context.Background(), testUser, sess, Event{Kind: EventGTE})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingAlertTarget, sess.State)
	assert.Equal(t, "gte", sess.PendingCondition)

	// unparseable target re-prompts in place
	sess, rep, err = e.Handle(context.Background(), testUser, sess, Event{Kind: EventText, Text: "not a number"})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingAlertTarget, sess.State)
	assert.Empty(t, alerts.saved)

	sess, rep, err = e.Handle(context.Background(), testUser, sess, Event{Kind: EventText, Text: "42000.5"})
	require.NoError(t, err)
	assert.Equal(t, StateManagingAlerts, sess.State)
	assert.Empty(t, sess.PendingSymbol, "transient fields are cleared on completion")
	assert.True(t, rep.EditTracked)
	assert.Contains(t, rep.Text, "saved")

	require.Len(t, alerts.saved, 1)
	saved := alerts.saved[0]
	assert.Equal(t, testUser, saved.userID)
	assert.Equal(t, "BTC", saved.symbol)
	assert.Equal(t, domain.ConditionGTE, saved.cond)
	assert.True(t, saved.target.Equal(decimal.RequireFromString("42000.5")))
}

func TestAlertTargetSessionCorruptionEndsSession(t *testing.T) {
	alerts := &fakeAlerts{}
	e := newTestEngine(t, alerts, &fakeSubs{})

	// PendingCondition was never collected
	sess := state.Session{
		State:         StateAwaitingAlertTarget,
		PendingSymbol: "BTC",
		EditChatID:    42,
		EditMessageID: 1001,
	}
	sess, rep, err := e.Handle(context.Background(), testUser, sess, Event{Kind: EventText, Text: "100"})
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, sess.State, "corrupted session ends, user must restart")
	assert.Contains(t, rep.Text, "/start")
	assert.Empty(t, alerts.saved)
}

func TestManagingAlertsCancelFallsBackWhenEmpty(t *testing.T) {
	alerts := &fakeAlerts{rows: []domain.Alert{{
		ID: 5, UserID: testUser, Symbol: "BTC",
		Target: decimal.NewFromInt(100), Condition: domain.ConditionGTE, Status: domain.AlertActive,
	}}}
	e := newTestEngine(t, alerts, &fakeSubs{})

	sess, rep, err := e.Handle(context.Background(), testUser,
		state.Session{State: StateManagingAlerts}, Event{Kind: EventCancelAlert, Payload: "5"})
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, alerts.deleted)
	assert.Equal(t, StateAwaitingAlertCurrency, sess.State, "empty list falls back to the input prompt")
	assert.True(t, rep.TrackPrompt)
}

func TestCancelNeverTouchesForeignRows(t *testing.T) {
	alerts := &fakeAlerts{rows: []domain.Alert{{
		ID: 7, UserID: 99, Symbol: "BTC",
		Target: decimal.NewFromInt(100), Condition: domain.ConditionGTE, Status: domain.AlertActive,
	}}}
	subs := &fakeSubs{rows: []domain.Subscription{
		{ID: 11, UserID: 99, Symbol: "BTC", Frequency: domain.FrequencyDaily},
	}}
	e := newTestEngine(t, alerts, subs)

	// forged payloads carrying another user's row ids
	_, _, err := e.Handle(context.Background(), testUser,
		state.Session{State: StateManagingAlerts}, Event{Kind: EventCancelAlert, Payload: "7"})
	require.NoError(t, err)
	require.Len(t, alerts.rows, 1, "another user's alert must survive")

	_, _, err = e.Handle(context.Background(), testUser,
		state.Session{State: StateManagingSubs}, Event{Kind: EventCancelSub, Payload: "11"})
	require.NoError(t, err)
	require.Len(t, subs.rows, 1, "another user's subscription must survive")
}

func TestManagingAlertsReRenderIsIdempotent(t *testing.T) {
	alerts := &fakeAlerts{rows: []domain.Alert{
		{ID: 1, UserID: testUser, Symbol: "BTC", Target: decimal.NewFromInt(100), Condition: domain.ConditionGTE, Status: domain.AlertActive},
		{ID: 2, UserID: testUser, Symbol: "ETH", Target: decimal.NewFromInt(50), Condition: domain.ConditionLTE, Status: domain.AlertTriggered},
	}}
	e := newTestEngine(t, alerts, &fakeSubs{})

	sess := state.Session{State: StateManagingAlerts}

	// gte is not modeled in ManagingAlerts; the menu is re-rendered instead
	next, first, err := e.Handle(context.Background(), testUser, sess, Event{Kind: EventGTE})
	require.NoError(t, err)
	assert.Equal(t, sess, next, "unmodeled events leave the session untouched")

	_, second, err := e.Handle(context.Background(), testUser, sess, Event{Kind: EventGTE})
	require.NoError(t, err)
	assert.Equal(t, first, second, "re-render is byte-identical")
}

func TestSubscriptionFlowEndToEnd(t *testing.T) {
	subs := &fakeSubs{}
	e := newTestEngine(t, &fakeAlerts{}, subs)

	sess, rep, err := e.Handle(context.Background(), testUser,
		state.Session{State: StateMainMenu}, Event{Kind: EventPriceSub})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingSubCurrency, sess.State)
	assert.True(t, rep.TrackPrompt)

	sess.EditChatID = 42
	sess.EditMessageID = 2002

	sess, _, err = e.Handle(context.Background(), testUser, sess, Event{Kind: EventText, Text: "BTC"})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingSubFrequency, sess.State)

	sess, rep, err = e.Handle(context.Background(), testUser, sess, Event{Kind: EventWeekly})
	require.NoError(t, err)
	assert.Equal(t, StateManagingSubs, sess.State)
	assert.Contains(t, rep.Text, "saved")

	require.Len(t, subs.saved, 1)
	assert.Equal(t, savedSub{userID: testUser, symbol: "BTC", freq: domain.FrequencyWeekly}, subs.saved[0])
}

func TestManagingSubsListsExisting(t *testing.T) {
	subs := &fakeSubs{rows: []domain.Subscription{
		{ID: 9, UserID: testUser, Symbol: "BTC", Frequency: domain.FrequencyDaily},
	}}
	e := newTestEngine(t, &fakeAlerts{}, subs)

	sess, rep, err := e.Handle(context.Background(), testUser,
		state.Session{State: StateMainMenu}, Event{Kind: EventPriceSub})
	require.NoError(t, err)
	assert.Equal(t, StateManagingSubs, sess.State)
	assert.Contains(t, rep.Text, "subscriptions")
}

func TestStorageFailureDegradesToMessage(t *testing.T) {
	alerts := &fakeAlerts{listErr: errors.New("db down")}
	e := newTestEngine(t, alerts, &fakeSubs{})

	sess, rep, err := e.Handle(context.Background(), testUser,
		state.Session{State: StateMainMenu}, Event{Kind: EventPriceAlert})
	require.NoError(t, err, "storage errors degrade to a plain message")
	assert.Equal(t, StateMainMenu, sess.State)
	assert.Contains(t, rep.Text, "went wrong")
}

func TestIdleSessionHintsStart(t *testing.T) {
	e := newTestEngine(t, &fakeAlerts{}, &fakeSubs{})

	sess, rep, err := e.Handle(context.Background(), testUser,
		state.Session{State: state.StateIdle}, Event{Kind: EventText, Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, state.StateIdle, sess.State)
	assert.Contains(t, rep.Text, "/start")
}
