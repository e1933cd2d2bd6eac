package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/esp32aq/internal/device"
	"github.com/muurk/esp32aq/internal/sensor"
)

// FetchFunc fetches one set of readings
type FetchFunc func(ctx context.Context) (device.Readings, error)

// readingsMsg carries the result of one fetch
type readingsMsg struct {
	readings device.Readings
	err      error
	at       time.Time
}

// tickMsg drives the countdown to the next poll
type tickMsg time.Time

// watchKeyMap defines key bindings for the watch screen
type watchKeyMap struct {
	Refresh key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Refresh, k.Quit}}
}

// WatchModel polls one device on an interval and shows its latest readings.
// Failed polls keep the last good readings on screen, marked stale.
type WatchModel struct {
	ctx      context.Context
	host     string
	interval time.Duration
	fetch    FetchFunc

	spinner   spinner.Model
	countdown progress.Model
	help      help.Model
	keys      watchKeyMap
	width     int

	fetching bool
	readings *device.Readings
	updated  time.Time
	err      error
	failures int
	next     time.Time
	now      time.Time
}

// NewWatchModel creates a model polling host through fetch every interval
func NewWatchModel(ctx context.Context, host string, interval time.Duration, fetch FetchFunc) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SubtitleStyle

	width := GetTerminalWidth()
	h := help.New()
	h.Width = width

	return WatchModel{
		ctx:       ctx,
		host:      host,
		interval:  interval,
		fetch:     fetch,
		spinner:   s,
		countdown: progress.New(progress.WithDefaultGradient(), progress.WithWidth(30), progress.WithoutPercentage()),
		help:      h,
		keys: watchKeyMap{
			Refresh: key.NewBinding(
				key.WithKeys("r"),
				key.WithHelp("r", "refresh now"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
		width:    width,
		fetching: true,
	}
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m WatchModel) poll() tea.Cmd {
	ctx, fetch := m.ctx, m.fetch
	return func() tea.Msg {
		r, err := fetch(ctx)
		return readingsMsg{readings: r, err: err, at: time.Now()}
	}
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			if m.fetching {
				return m, nil
			}
			m.fetching = true
			return m, tea.Batch(m.spinner.Tick, m.poll())
		}

	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		m.help.Width = m.width

	case readingsMsg:
		m.fetching = false
		m.now = msg.at
		m.next = msg.at.Add(m.interval)
		if msg.err != nil {
			m.err = msg.err
			m.failures++
		} else {
			r := msg.readings
			m.readings = &r
			m.updated = msg.at
			m.err = nil
			m.failures = 0
		}

	case tickMsg:
		m.now = time.Time(msg)
		if !m.fetching && !m.next.IsZero() && !m.now.Before(m.next) {
			m.fetching = true
			return m, tea.Batch(tick(), m.spinner.Tick, m.poll())
		}
		return m, tick()

	case spinner.TickMsg:
		if !m.fetching {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model
func (m WatchModel) View() string {
	var lines []string
	lines = append(lines,
		TitleStyle.Render("ESP32 AIR QUALITY")+"  "+SubtitleStyle.Render(m.host),
		RenderDivider(m.width-6),
	)

	if m.readings == nil {
		lines = append(lines, SubtitleStyle.Render("no readings yet"))
	} else {
		for _, d := range sensor.Descriptions {
			v := d.Value(*m.readings)
			lines = append(lines, KeyStyle.Render(d.Label)+LevelStyle(d.Key, v).Render(sensor.FormatValue(v))+" "+UnitStyle.Render(d.Unit))
		}
	}
	lines = append(lines, "")

	switch {
	case m.fetching:
		lines = append(lines, m.spinner.View()+" "+SubtitleStyle.Render("polling..."))
	case m.err != nil:
		status := fmt.Sprintf("%s %v", FailureMarker, m.err)
		if m.failures > 1 {
			status += fmt.Sprintf(" (%d failures in a row)", m.failures)
		}
		lines = append(lines, ErrorMessageStyle.Render(status))
		if m.readings != nil {
			lines = append(lines, SubtitleStyle.Render("showing stale readings from "+m.updated.Format("15:04:05")))
		}
		if hint := device.TroubleshootingHint(m.err); len(hint) > 0 {
			lines = append(lines, TroubleshootingItemStyle.Render("• "+hint[0]))
		}
	default:
		lines = append(lines, SubtitleStyle.Render(SuccessMarker+" updated "+m.updated.Format("15:04:05")))
	}

	if !m.fetching && !m.next.IsZero() {
		lines = append(lines, m.countdown.ViewAs(m.elapsed())+" "+SubtitleStyle.Render("next poll in "+m.remaining().String()))
	}

	return PanelStyle(m.width).Render(strings.Join(lines, "\n")) + "\n" + HelpStyle.Render(m.help.View(m.keys)) + "\n"
}

// elapsed returns the fraction of the interval passed since the last poll
func (m WatchModel) elapsed() float64 {
	if m.interval <= 0 {
		return 1
	}
	f := 1 - float64(m.remaining())/float64(m.interval)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func (m WatchModel) remaining() time.Duration {
	d := m.next.Sub(m.now).Round(time.Second)
	if d < 0 {
		return 0
	}
	return d
}

// RunWatch runs the watch screen until the user quits or ctx is cancelled
func RunWatch(ctx context.Context, host string, interval time.Duration, fetch FetchFunc) error {
	p := tea.NewProgram(NewWatchModel(ctx, host, interval, fetch), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
