package tui

// Keybinding constants
const (
	KeyAsk      = "enter"
	KeyListen   = "ctrl+r"
	KeyReplay   = "ctrl+s"
	KeyQuit     = "esc"
	KeyCtrlC    = "ctrl+c"
	KeyUp       = "up"
	KeyDown     = "down"
	KeyPageUp   = "pgup"
	KeyPageDown = "pgdown"
)

// HelpView returns a one-line help bar with common keybindings.
func HelpView() string {
	return StyleHelp.Render("Enter: ask | Ctrl+R: speak / stop | Ctrl+S: replay answer | ↑/↓: scroll | Esc: quit")
}
