// Package display holds the surfaces that show scan results to the user.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mikey/mail-shield/internal/core"
	"github.com/mikey/mail-shield/internal/dispatch"
)

type tone int

const (
	toneNeutral tone = iota
	toneSafe
	toneWarn
	toneDanger
)

var (
	timeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	toneStyles = map[tone]lipgloss.Style{
		toneNeutral: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		toneSafe:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		toneWarn:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		toneDanger:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
)

// Console prints every result as a styled line
type Console struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewConsole creates a console sink writing to out
func NewConsole(out io.Writer) *Console {
	return &Console{out: out, now: time.Now}
}

// Display implements core.UISink
func (c *Console) Display(msg core.UIMessage) {
	line := fmt.Sprintf("%s %s\n",
		timeStyle.Render(c.now().Format("15:04:05")),
		toneStyles[toneOf(msg.Result)].Render(msg.Result))

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, line)
}

func toneOf(result string) tone {
	if strings.HasPrefix(result, "Scan failed") || strings.HasPrefix(result, "Scan timed out") {
		return toneWarn
	}
	label, ok := dispatch.ParseLabel(result)
	if !ok {
		return toneNeutral
	}
	switch core.StatusFromLabel(string(label)) {
	case core.StatusSafe:
		return toneSafe
	case core.StatusMalicious:
		return toneDanger
	default:
		return toneWarn
	}
}
