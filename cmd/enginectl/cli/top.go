package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// NewTopCmd builds the "top" subcommand: a live terminal dashboard
// polling a running enginectl serve's admin surface.
func NewTopCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Live dashboard of engine/fiber/event counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := tea.NewProgram(newTopModel(addr), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "admin surface base URL")
	return cmd
}

type engineStats struct {
	Queued int `json:"queued"`
	Live   int `json:"live"`
	Pool   int `json:"pool_size"`
}

type fiberStats struct {
	Count int `json:"count"`
}

type tickMsg struct {
	engine engineStats
	fibers fiberStats
	err    error
}

type topModel struct {
	addr   string
	client *http.Client
	tick   tickMsg
}

func newTopModel(addr string) *topModel {
	return &topModel{addr: addr, client: &http.Client{Timeout: 2 * time.Second}}
}

func (m *topModel) Init() tea.Cmd {
	return m.poll()
}

func (m *topModel) poll() tea.Cmd {
	return func() tea.Msg {
		var msg tickMsg
		if err := m.getJSON("/api/v1/engine/stats", &msg.engine); err != nil {
			msg.err = err
			return msg
		}
		if err := m.getJSON("/api/v1/fibers/stats", &msg.fibers); err != nil {
			msg.err = err
			return msg
		}
		return msg
	}
}

func (m *topModel) getJSON(path string, out any) error {
	resp, err := m.client.Get(m.addr + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (m *topModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		m.tick = msg
		return m, tea.Tick(time.Second, func(time.Time) tea.Msg { return m.poll()() })
	}
	return m, nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func (m *topModel) View() string {
	if m.tick.err != nil {
		return errStyle.Render(fmt.Sprintf("enginectl top: %v (q to quit)", m.tick.err))
	}
	return fmt.Sprintf(
		"%s\n\n%s %d\n%s %d\n%s %d\n%s %d\n\n(q to quit)\n",
		headerStyle.Render("engine runtime"),
		labelStyle.Render("queued operations:"), m.tick.engine.Queued,
		labelStyle.Render("live operations: "), m.tick.engine.Live,
		labelStyle.Render("pool workers:    "), m.tick.engine.Pool,
		labelStyle.Render("fibers:          "), m.tick.fibers.Count,
	)
}
