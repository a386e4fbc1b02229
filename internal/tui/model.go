// Package tui is the interactive frame browser behind `inspect --ui`.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"github.com/vburojevic/ttycast/internal/domain"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	detailStyle  = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderTop(true).PaddingLeft(1)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	acceptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// chrome is the number of lines around the table: title, summary, detail
// box and help.
const chrome = 7

var columns = []table.Column{
	{Title: "#", Width: 5},
	{Title: "Offset", Width: 8},
	{Title: "Op", Width: 6},
	{Title: "Chan", Width: 5},
	{Title: "Dir", Width: 4},
	{Title: "Len", Width: 6},
	{Title: "Elapsed", Width: 10},
	{Title: "Verdict", Width: 21},
	{Title: "Payload", Width: 30},
}

// Model browses the frames of one capture.
type Model struct {
	source       string
	records      []domain.FrameRecord
	visible      []domain.FrameRecord
	summary      *domain.InspectSummary
	table        table.Model
	onlyAccepted bool
	width        int
	height       int
	ready        bool
}

// New builds the browser over records.
func New(source string, records []domain.FrameRecord, summary *domain.InspectSummary) Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	m := Model{source: source, records: records, summary: summary, table: t}
	m.refresh()
	return m
}

func (m *Model) refresh() {
	m.visible = m.records
	if m.onlyAccepted {
		m.visible = lo.Filter(m.records, func(r domain.FrameRecord, _ int) bool {
			return r.Verdict == "accept"
		})
	}
	m.table.SetRows(lo.Map(m.visible, func(r domain.FrameRecord, _ int) table.Row {
		return table.Row{
			strconv.Itoa(r.Index),
			strconv.Itoa(r.Offset),
			r.Op,
			strconv.FormatUint(uint64(r.Channel), 10),
			strconv.Itoa(int(r.Direction)),
			strconv.Itoa(int(r.Length)),
			strconv.FormatFloat(r.Elapsed, 'f', 3, 64),
			r.Verdict,
			r.Preview,
		}
	}))
	if m.table.Cursor() >= len(m.visible) {
		m.table.SetCursor(max(len(m.visible)-1, 0))
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(max(msg.Height-chrome, 3))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "a":
			m.onlyAccepted = !m.onlyAccepted
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// Selected returns the frame under the cursor.
func (m Model) Selected() (domain.FrameRecord, bool) {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.visible) {
		return domain.FrameRecord{}, false
	}
	return m.visible[c], true
}

// View implements tea.Model
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("ttycast inspect: " + m.source))
	b.WriteString("\n")
	if m.summary != nil {
		b.WriteString(summaryStyle.Render(m.summary.Summary()))
	}
	b.WriteString("\n")

	if len(m.visible) == 0 {
		b.WriteString("No frames to show\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	if r, ok := m.Selected(); ok {
		verdict := r.Verdict
		if verdict == "accept" {
			verdict = acceptStyle.Render(verdict)
		}
		detail := fmt.Sprintf("frame %d @%d  %s  sec=%d usec=%d  %s\n%s",
			r.Index, r.Offset, r.Op, r.Sec, r.Usec, verdict, r.Preview)
		b.WriteString(detailStyle.Render(detail))
		b.WriteString("\n")
	}

	filter := "all frames"
	if m.onlyAccepted {
		filter = "accepted only"
	}
	b.WriteString(helpStyle.Render(fmt.Sprintf("%d shown (%s) • ↑/↓ move • a toggle accepted • q quit", len(m.visible), filter)))
	return b.String()
}
