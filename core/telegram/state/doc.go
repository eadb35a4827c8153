// Package state provides a lightweight FSM/session manager for Telegram bots.
// A session carries the user's current dialogue state plus named transient
// fields the flows need between turns. Events for the same user are serialized
// through Do so a second update never observes a half-written session.
package state
