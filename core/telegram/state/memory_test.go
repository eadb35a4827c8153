package state

import (
	"sync"
	"testing"
	"time"
)

func TestGetDefaultsToIdle(t *testing.T) {
	m := NewMemoryManager()
	sess := m.Get(1)
	if sess.State != StateIdle {
		t.Fatalf("expected idle state, got %q", sess.State)
	}
	if m.InProgress(1) {
		t.Fatal("unknown user must not be in progress")
	}
}

func TestUpdateAndClear(t *testing.T) {
	m := NewMemoryManager()
	m.SetState(1, State("step_one"))
	m.Update(1, func(s *Session) {
		s.PendingSymbol = "BTC"
		s.EditChatID = 7
		s.EditMessageID = 99
	})

	sess := m.Get(1)
	if sess.State != State("step_one") || sess.PendingSymbol != "BTC" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if !sess.HasEditRef() {
		t.Fatal("expected edit ref to be set")
	}
	if !m.InProgress(1) {
		t.Fatal("expected user in progress")
	}

	m.Clear(1)
	if m.InProgress(1) {
		t.Fatal("cleared session must not be in progress")
	}
	if got := m.Get(1); got.State != StateIdle || got.PendingSymbol != "" || got.HasEditRef() {
		t.Fatalf("cleared session must read as a fresh idle one, got %+v", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	m := NewMemoryManager()
	m.SetState(1, State("step_one"))

	sess := m.Get(1)
	sess.PendingSymbol = "mutated"

	if got := m.Get(1); got.PendingSymbol != "" {
		t.Fatal("mutating the returned copy must not affect the stored session")
	}
}

func TestSessionsAreIndependentPerUser(t *testing.T) {
	m := NewMemoryManager()
	m.SetState(1, State("step_one"))
	m.SetState(2, State("step_two"))

	if m.Get(1).State != State("step_one") || m.Get(2).State != State("step_two") {
		t.Fatal("sessions must be keyed per user")
	}
}

func TestDoSerializesEventsPerUser(t *testing.T) {
	m := NewMemoryManager()

	const workers = 8
	const rounds = 100
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				_ = m.Do(1, func() error {
					// non-atomic increment is only safe if Do serializes
					counter++
					return nil
				})
			}
		}()
	}
	wg.Wait()

	if counter != workers*rounds {
		t.Fatalf("expected %d, got %d (events interleaved)", workers*rounds, counter)
	}
}

func TestDoStillSerializesAfterClear(t *testing.T) {
	m := NewMemoryManager()
	m.SetState(1, State("step_one"))

	firstCleared := make(chan struct{})
	releaseFirst := make(chan struct{})
	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_ = m.Do(1, func() error {
			// cancel path: the event clears the session mid-flight
			m.Clear(1)
			close(firstCleared)
			<-releaseFirst
			return nil
		})
	}()

	<-firstCleared
	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		_ = m.Do(1, func() error { return nil })
	}()

	select {
	case <-secondDone:
		t.Fatal("second event ran while the first was still inside Do")
	case <-time.After(50 * time.Millisecond):
	}

	close(releaseFirst)
	<-firstDone
	<-secondDone
}
