package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/buemura/surface/internal/tui/styles"
)

// AutoProbe is the menu entry that lets the scan pick probes from the
// detected technology stack.
const AutoProbe = "auto"

// ProbeItem is one menu entry.
type ProbeItem struct {
	Name        string
	Description string
}

// MenuModel picks what a scan runs: the automatic selection, the
// highlighted probe, or a set of probes toggled with space.
type MenuModel struct {
	items  []ProbeItem
	cursor int
	picked map[string]bool
}

func NewMenuModel(items []ProbeItem) MenuModel {
	return MenuModel{items: items, picked: map[string]bool{}}
}

func (m MenuModel) Init() tea.Cmd {
	return nil
}

// Update handles navigation and toggling. Toggling the auto entry clears
// the picked set.
func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case " ", "space":
		m.toggle()
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m *MenuModel) toggle() {
	if len(m.items) == 0 {
		return
	}
	picked := make(map[string]bool, len(m.picked)+1)
	name := m.items[m.cursor].Name
	if name != AutoProbe {
		for k := range m.picked {
			picked[k] = true
		}
		if picked[name] {
			delete(picked, name)
		} else {
			picked[name] = true
		}
	}
	m.picked = picked
}

// View renders the auto entry above a divider, then every probe with its
// toggle state.
func (m MenuModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("Surface • Interactive Mode"))
	b.WriteString("\n\n")
	b.WriteString(styles.HeaderStyle.Render("Select probes:"))
	b.WriteString("\n")

	for i, item := range m.items {
		cursor := "  "
		nameStyle := styles.HelpStyle
		if i == m.cursor {
			cursor = styles.CursorStyle.Render("> ")
			nameStyle = styles.SelectedStyle
		}

		if item.Name == AutoProbe {
			fmt.Fprintf(&b, "%s    %-16s  %s\n", cursor, nameStyle.Render(item.Name), styles.HelpStyle.Render(item.Description))
			b.WriteString(styles.HelpStyle.Render("  " + strings.Repeat("─", 40)))
			b.WriteString("\n")
			continue
		}

		box := "[ ]"
		if m.picked[item.Name] {
			box = styles.SelectedStyle.Render("[x]")
		}
		fmt.Fprintf(&b, "%s%s %-16s  %s\n", cursor, box, nameStyle.Render(item.Name), styles.HelpStyle.Render(item.Description))
	}

	b.WriteString("\n")
	if n := len(m.picked); n > 0 {
		b.WriteString(styles.HeaderStyle.Render(fmt.Sprintf("%d probes selected", n)))
		b.WriteString("\n")
	}
	b.WriteString(styles.HelpStyle.Render("↑/↓ navigate • space toggle • enter start • q quit"))

	return b.String()
}

// Selection returns the probes to run in menu order: the toggled set if
// any, otherwise the highlighted probe. The auto entry yields an empty list.
// ok is false for an empty menu.
func (m MenuModel) Selection() (probes []string, ok bool) {
	if len(m.items) == 0 {
		return nil, false
	}
	if len(m.picked) > 0 {
		for _, item := range m.items {
			if m.picked[item.Name] {
				probes = append(probes, item.Name)
			}
		}
		return probes, true
	}
	if name := m.items[m.cursor].Name; name != AutoProbe {
		return []string{name}, true
	}
	return nil, true
}

func (m MenuModel) Cursor() int {
	return m.cursor
}

func (m MenuModel) Items() []ProbeItem {
	return m.items
}
