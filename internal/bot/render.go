package bot

import (
	"fmt"
	"strconv"

	"github.com/m3rciful/pricebot/internal/domain"
)

// Button is one inline action offered with a reply. Kind becomes the
// callback action identifier; Payload carries an entity id when the action
// targets a specific row.
type Button struct {
	Label   string
	Kind    EventKind
	Payload string
}

// Reply is the engine's rendering instruction for one handled event.
type Reply struct {
	Text    string
	Buttons [][]Button

	// TrackPrompt asks the transport to remember the delivered message so a
	// later step of the flow can edit it in place.
	TrackPrompt bool
	// EditTracked asks the transport to edit the remembered message instead
	// of sending a new one.
	EditTracked bool
}

func btn(label string, kind EventKind) Button {
	return Button{Label: label, Kind: kind}
}

func btnID(label string, kind EventKind, id int64) Button {
	return Button{Label: label, Kind: kind, Payload: strconv.FormatInt(id, 10)}
}

func mainMenuReply() Reply {
	return Reply{
		Text: "What would you like to do?",
		Buttons: [][]Button{
			{btn("💰 Live price", EventLivePrice)},
			{btn("🔔 Price alerts", EventPriceAlert)},
			{btn("📬 Price subscriptions", EventPriceSub)},
		},
	}
}

func promptReply(text string, track bool) Reply {
	return Reply{
		Text:        text,
		Buttons:     [][]Button{{btn("🏠 Main menu", EventMainMenu)}},
		TrackPrompt: track,
	}
}

func recordReply(rec domain.CurrencyRecord) Reply {
	return Reply{
		Text: recordText(rec),
		Buttons: [][]Button{
			{btn("🔄 Another currency", EventLiveAgain)},
			{btn("🏠 Main menu", EventMainMenu)},
		},
	}
}

func recordText(rec domain.CurrencyRecord) string {
	return fmt.Sprintf("%s (%s)\nPrice: %s\n24h change: %s\n24h volume: %s",
		rec.EnglishName, rec.Symbol, rec.Price.String(), rec.Change24h, rec.Volume24h)
}

func alertListReply(alerts []domain.Alert) Reply {
	text := "Your price alerts:"
	rows := make([][]Button, 0, len(alerts)+2)
	for _, a := range alerts {
		label := fmt.Sprintf("❌ %s %s %s", a.Symbol, condSign(a.Condition), a.Target.String())
		if a.Status == domain.AlertTriggered {
			label = fmt.Sprintf("✅ %s %s %s", a.Symbol, condSign(a.Condition), a.Target.String())
		}
		rows = append(rows, []Button{btnID(label, EventCancelAlert, a.ID)})
	}
	rows = append(rows,
		[]Button{btn("➕ New alert", EventNewAlert)},
		[]Button{btn("🏠 Main menu", EventMainMenu)},
	)
	return Reply{Text: text, Buttons: rows}
}

func condSign(c domain.Condition) string {
	if c == domain.ConditionLTE {
		return "≤"
	}
	return "≥"
}

func subListReply(subs []domain.Subscription) Reply {
	text := "Your price subscriptions:"
	rows := make([][]Button, 0, len(subs)+2)
	for _, s := range subs {
		label := fmt.Sprintf("❌ %s (%s)", s.Symbol, s.Frequency)
		rows = append(rows, []Button{btnID(label, EventCancelSub, s.ID)})
	}
	rows = append(rows,
		[]Button{btn("➕ New subscription", EventNewSub)},
		[]Button{btn("🏠 Main menu", EventMainMenu)},
	)
	return Reply{Text: text, Buttons: rows}
}

func conditionPrompt(symbol string) Reply {
	return Reply{
		Text: fmt.Sprintf("Alert for %s. Notify me when the price is:", symbol),
		Buttons: [][]Button{
			{btn("📈 At or above target", EventGTE), btn("📉 At or below target", EventLTE)},
			{btn("🏠 Main menu", EventMainMenu)},
		},
	}
}

func targetPrompt(symbol string, cond domain.Condition) Reply {
	direction := "rises to"
	if cond == domain.ConditionLTE {
		direction = "drops to"
	}
	return Reply{
		Text:    fmt.Sprintf("Send the target price. I will notify you once %s %s it or beyond.", symbol, direction),
		Buttons: [][]Button{{btn("🏠 Main menu", EventMainMenu)}},
	}
}

func frequencyPrompt(symbol string) Reply {
	return Reply{
		Text: fmt.Sprintf("How often should I send the %s digest?", symbol),
		Buttons: [][]Button{
			{btn("Daily", EventDaily), btn("Weekly", EventWeekly), btn("Monthly", EventMonthly)},
			{btn("🏠 Main menu", EventMainMenu)},
		},
	}
}
