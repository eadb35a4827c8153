// Package bot implements the conversation state machine behind the chat
// surface: three flows (live lookup, threshold alerts, digest subscriptions)
// driven by a transition table over per-user sessions. The engine itself is
// transport-free; the telegram adapter in this package maps updates to
// events and renders replies.
package bot

import "github.com/m3rciful/pricebot/core/telegram/state"

// Dialogue states.
const (
	StateMainMenu              state.State = "main_menu"
	StateAwaitingLiveCurrency  state.State = "awaiting_live_currency"
	StateShowingLiveResult     state.State = "showing_live_result"
	StateAwaitingAlertCurrency state.State = "awaiting_alert_currency"
	StateAwaitingAlertCond     state.State = "awaiting_alert_condition"
	StateAwaitingAlertTarget   state.State = "awaiting_alert_target"
	StateManagingAlerts        state.State = "managing_alerts"
	StateAwaitingSubCurrency   state.State = "awaiting_sub_currency"
	StateAwaitingSubFrequency  state.State = "awaiting_sub_frequency"
	StateManagingSubs          state.State = "managing_subscriptions"
)

// allStates is the closed set the transition table is validated against.
var allStates = []state.State{
	StateMainMenu,
	StateAwaitingLiveCurrency,
	StateShowingLiveResult,
	StateAwaitingAlertCurrency,
	StateAwaitingAlertCond,
	StateAwaitingAlertTarget,
	StateManagingAlerts,
	StateAwaitingSubCurrency,
	StateAwaitingSubFrequency,
	StateManagingSubs,
}

// EventKind tags one kind of incoming user event. Callback kinds double as
// the stable callback action identifiers on the wire.
type EventKind string

const (
	EventStart  EventKind = "start"
	EventCancel EventKind = "cancel"
	// EventText carries free text typed while an input state is active.
	EventText EventKind = "text"

	EventLivePrice   EventKind = "live_price"
	EventPriceAlert  EventKind = "price_alert"
	EventPriceSub    EventKind = "price_subscription"
	EventLiveAgain   EventKind = "live_price_again"
	EventMainMenu    EventKind = "main_menu"
	EventGTE         EventKind = "gte"
	EventLTE         EventKind = "lte"
	EventNewAlert    EventKind = "new_alert"
	EventCancelAlert EventKind = "cancel_alert"
	EventNewSub      EventKind = "new_sub"
	EventCancelSub   EventKind = "cancel_sub"
	EventDaily       EventKind = "daily"
	EventWeekly      EventKind = "weekly"
	EventMonthly     EventKind = "monthly"
)

// allEvents is the closed set the transition table is validated against.
// EventStart and EventCancel are handled before table dispatch and are not
// part of it.
var allEvents = []EventKind{
	EventText,
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

// Event is one user interaction delivered to the engine. Text carries the
// message body for EventText; Payload carries the callback payload (an
// entity id for cancel actions).
type Event struct {
	Kind    EventKind
	Text    string
	Payload string
}
