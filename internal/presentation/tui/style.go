package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

var levelColors = map[domain.LogLevel]string{
	domain.LogLevelDebug: "#94a3b8",
	domain.LogLevelInfo:  "#38bdf8",
	domain.LogLevelWarn:  "#fbbf24",
	domain.LogLevelError: "#f87171",
	domain.LogLevelFatal: "#e879f9",
}

// Styler colours terminal output. Colours are off unless the target is a TTY.
type Styler struct {
	profile termenv.Profile
}

// NewStyler detects the colour profile of f.
func NewStyler(f *os.File) *Styler {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return &Styler{profile: termenv.Ascii}
	}
	return &Styler{profile: termenv.NewOutput(f).ColorProfile()}
}

// NewPlainStyler never emits escape sequences.
func NewPlainStyler() *Styler {
	return &Styler{profile: termenv.Ascii}
}

// Colored reports whether the styler emits escape sequences.
func (s *Styler) Colored() bool {
	return s.profile != termenv.Ascii
}

// Level renders a log level tag, e.g. "[WARN]".
func (s *Styler) Level(l domain.LogLevel) string {
	tag := "[" + strings.ToUpper(l.String()) + "]"
	style := s.profile.String(tag).Foreground(s.profile.Color(levelColors[l]))
	if l >= domain.LogLevelError {
		style = style.Bold()
	}
	return style.String()
}

// LogLine renders one streamed log message.
func (s *Styler) LogLine(nodeID string, l domain.LogLevel, message string) string {
	node := s.profile.String(nodeID).Faint().String()
	return fmt.Sprintf("%s %s %s", s.Level(l), node, message)
}

// PrintBanner writes the ASCII art banner followed by the version.
func (s *Styler) PrintBanner(w io.Writer, version string) {
	lines := []struct{ text, color string }{
		{"  __ _                 _ _ _        ", "#818cf8"},
		{" / _| | _____      __ | (_) | _____ ", "#a78bfa"},
		{"| |_| |/ _ \\ \\ /\\ / / | | | |/ / _ \\", "#c084fc"},
		{"|  _| | (_) \\ V  V /  | | |   <  __/", "#e879f9"},
		{"|_| |_|\\___/ \\_/\\_/   |_|_|_|\\_\\___|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, s.profile.String(l.text).Foreground(s.profile.Color(l.color)))
	}
	fmt.Fprintln(w, s.profile.String("  "+version).Faint())
	fmt.Fprintln(w)
}
