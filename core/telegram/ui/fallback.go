package ui

import (
	tg "github.com/m3rciful/pricebot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// FallbackProvider exposes handlers used when incoming updates
// cannot be mapped to commands or registered callbacks.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// Apply installs the provider's handlers as the registry fallbacks.
func Apply(reg *tg.Registry, p FallbackProvider) {
	if reg == nil || p == nil {
		return
	}
	reg.SetTextFallback(p.UnknownText())
	reg.SetCallbackNotFound(p.UnknownCallback())
}
