package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/esp32aq/internal/device"
)

func newTestModel(fetch FetchFunc) WatchModel {
	m := NewWatchModel(context.Background(), "192.168.1.40", 30*time.Second, fetch)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(WatchModel)
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestWatch_PollFetches(t *testing.T) {
	calls := 0
	m := newTestModel(func(ctx context.Context) (device.Readings, error) {
		calls++
		return sample, nil
	})

	msg := m.poll()()
	if calls != 1 {
		t.Fatalf("fetch called %d times", calls)
	}
	rm, ok := msg.(readingsMsg)
	if !ok || rm.readings != sample {
		t.Errorf("poll() msg = %#v", msg)
	}
}

func TestWatch_ShowsReadings(t *testing.T) {
	m := newTestModel(nil)
	at := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

	updated, _ := m.Update(readingsMsg{readings: sample, at: at})
	m = updated.(WatchModel)

	if m.fetching {
		t.Error("fetching should be cleared")
	}
	if !m.next.Equal(at.Add(30 * time.Second)) {
		t.Errorf("next poll = %v", m.next)
	}
	view := m.View()
	for _, want := range []string{"192.168.1.40", "CO2", "415", "updated 15:04:05"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestWatch_FailureKeepsStaleReadings(t *testing.T) {
	m := newTestModel(nil)
	at := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

	updated, _ := m.Update(readingsMsg{readings: sample, at: at})
	updated, _ = updated.Update(readingsMsg{
		err: &device.DeviceError{Message: "request timed out", Cause: device.CauseTimeout},
		at:  at.Add(30 * time.Second),
	})
	m = updated.(WatchModel)

	if m.readings == nil || m.readings.CO2 != 415 {
		t.Error("readings should survive a failed poll")
	}
	if m.failures != 1 {
		t.Errorf("failures = %d, want 1", m.failures)
	}
	view := m.View()
	if !strings.Contains(view, "request timed out") || !strings.Contains(view, "stale") {
		t.Errorf("view = \n%s", view)
	}
}

func TestWatch_TickTriggersPoll(t *testing.T) {
	m := newTestModel(func(ctx context.Context) (device.Readings, error) { return sample, nil })
	at := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

	updated, _ := m.Update(readingsMsg{readings: sample, at: at})
	updated, _ = updated.Update(tickMsg(at.Add(10 * time.Second)))
	if updated.(WatchModel).fetching {
		t.Fatal("poll started before the interval elapsed")
	}

	updated, cmd := updated.Update(tickMsg(at.Add(30 * time.Second)))
	if !updated.(WatchModel).fetching || cmd == nil {
		t.Error("poll should start once the interval elapsed")
	}
}

func TestWatch_RefreshKey(t *testing.T) {
	m := newTestModel(func(ctx context.Context) (device.Readings, error) { return sample, nil })

	// the first poll is still running
	if _, cmd := m.Update(keyMsg("r")); cmd != nil {
		t.Error("refresh during a poll should be ignored")
	}

	updated, _ := m.Update(readingsMsg{readings: sample, at: time.Now()})
	updated, cmd := updated.Update(keyMsg("r"))
	if !updated.(WatchModel).fetching || cmd == nil {
		t.Error("refresh should start a poll")
	}
}

func TestWatch_Quit(t *testing.T) {
	m := newTestModel(nil)

	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("quit should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit should return tea.Quit")
	}
}
