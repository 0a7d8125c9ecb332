package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/jp-hoehmann/bun/internal/session"
	"github.com/jp-hoehmann/bun/internal/theme"
)

func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})
}

// SchemeTableView lists the colour schemes and marks current.
func SchemeTableView(schemes []theme.Scheme, current string) string {
	rows := make([][]string, 0, len(schemes))
	for i, s := range schemes {
		mark := ""
		if s.Name == current {
			mark = "*"
		}
		swatch := lipgloss.NewStyle().Background(lipgloss.Color(s.Color())).Render("    ")
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), s.Name, s.Color(), swatch, mark})
	}
	return newTable([]string{"#", "Name", "Color", "", "Active"}, rows).Render()
}

// PeopleTableView renders the people list in list view.
func PeopleTableView(people []session.Person) string {
	if len(people) == 0 {
		return MutedStyle.Render("Nobody here yet")
	}

	rows := make([][]string, 0, len(people))
	for _, p := range people {
		name := truncate(p.Name, 24)
		if p.Local {
			name += " (you)"
		}
		state := "subscribed"
		switch {
		case p.Local:
			state = "publishing"
		case !p.Subscribed:
			state = "pending"
		}
		rows = append(rows, []string{name, truncate(p.StreamID, 12), state})
	}
	return newTable([]string{"Name", "Stream", "State"}, rows).Render()
}

// PeopleCompactView renders one name per line.
func PeopleCompactView(people []session.Person) string {
	if len(people) == 0 {
		return MutedStyle.Render("Nobody here yet")
	}
	var out string
	for i, p := range people {
		if i > 0 {
			out += "\n"
		}
		line := IconPeer + " " + truncate(p.Name, 20)
		if p.Local {
			line = BoldStyle.Render(line)
		}
		out += line
	}
	return out
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
