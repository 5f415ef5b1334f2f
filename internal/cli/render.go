package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"querai-chat/internal/model"
	"querai-chat/internal/notify"
)

const renderWidth = 80

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("25")).
			Padding(0, 1)

	explanationStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	sqlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			PaddingLeft(1)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	activeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))
)

func renderMessage(m model.Message) string {
	switch {
	case !m.Recognized():
		return metaStyle.Render(fmt.Sprintf("[%s] %s", m.Role, string(m.Raw)))
	case m.Role == model.RoleUser:
		return lipgloss.PlaceHorizontal(renderWidth, lipgloss.Right, userStyle.Render(m.Content))
	case m.Assistant != nil:
		return renderAssistant(m.Assistant)
	default:
		return metaStyle.Render(m.Content)
	}
}

func renderAssistant(p *model.AssistantPayload) string {
	var parts []string
	if p.Explanation != "" {
		parts = append(parts, explanationStyle.Width(renderWidth).Render(p.Explanation))
	}
	if p.SQL != "" {
		parts = append(parts, sqlStyle.Render(p.SQL))
	}
	if p.ResponseKind == model.ResponseSQL || len(p.Rows) > 0 {
		parts = append(parts, metaStyle.Render(rowCount(len(p.Rows))))
	}
	if p.Detail != "" && p.Detail != p.Explanation {
		parts = append(parts, metaStyle.Render(p.Detail))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func rowCount(n int) string {
	if n == 1 {
		return "1 row"
	}
	return fmt.Sprintf("%d rows", n)
}

func renderState(s model.StateResponse) string {
	var b strings.Builder
	if s.HasOlder {
		b.WriteString(metaStyle.Render(fmt.Sprintf("… %d older messages, /older to show", s.TotalMessages-len(s.Messages))))
		b.WriteString("\n")
	}
	for _, m := range s.Messages {
		b.WriteString(renderMessage(m))
		b.WriteString("\n")
	}
	return b.String()
}

func renderSessions(views []model.SessionResponse) string {
	if len(views) == 0 {
		return metaStyle.Render("No chats yet.") + "\n"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%d chats", len(views))))
	b.WriteString("\n")
	for _, v := range views {
		title := v.Title
		if v.Active {
			title = activeStyle.Render("* " + title)
		}
		fmt.Fprintf(&b, "%s  %s  %s\n", title, metaStyle.Render(v.SessionID), metaStyle.Render(v.ExpiresIn))
	}
	return b.String()
}

func renderNotices(notices []notify.Notice) string {
	var b strings.Builder
	for _, n := range notices {
		if n.Level == notify.LevelError {
			b.WriteString(errorStyle.Render("! " + n.Message))
		} else {
			b.WriteString(metaStyle.Render(n.Message))
		}
		b.WriteString("\n")
	}
	return b.String()
}
