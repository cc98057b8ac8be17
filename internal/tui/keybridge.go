package tui

import tea "github.com/charmbracelet/bubbletea"

// keyMsgToBytes reconstructs the raw terminal byte sequence a tea.KeyMsg
// was decoded from, so it can be re-fed into editor.Model.HandleInput,
// which speaks bytes rather than bubbletea's own key taxonomy (spec 4.2
// treats the host as a byte-stream producer).
func keyMsgToBytes(msg tea.KeyMsg) []byte {
	switch msg.Type {
	case tea.KeyRunes:
		return []byte(string(msg.Runes))
	case tea.KeySpace:
		return []byte(" ")
	case tea.KeyEnter:
		return []byte("\r")
	case tea.KeyTab:
		return []byte("\t")
	case tea.KeyShiftTab:
		return []byte("\x1b[Z")
	case tea.KeyBackspace:
		return []byte("\x7f")
	case tea.KeyDelete:
		return []byte("\x1b[3~")
	case tea.KeyUp:
		return []byte("\x1b[A")
	case tea.KeyDown:
		return []byte("\x1b[B")
	case tea.KeyRight:
		return []byte("\x1b[C")
	case tea.KeyLeft:
		return []byte("\x1b[D")
	case tea.KeyHome:
		return []byte("\x1b[H")
	case tea.KeyEnd:
		return []byte("\x1b[F")
	case tea.KeyPgUp:
		return []byte("\x1b[5~")
	case tea.KeyPgDown:
		return []byte("\x1b[6~")
	case tea.KeyCtrlA:
		return []byte("\x01")
	case tea.KeyCtrlE:
		return []byte("\x05")
	case tea.KeyCtrlC:
		return []byte("\x03")
	case tea.KeyCtrlD:
		return []byte("\x04")
	case tea.KeyCtrlW:
		return []byte("\x17")
	case tea.KeyCtrlU:
		return []byte("\x15")
	case tea.KeyCtrlK:
		return []byte("\x0b")
	case tea.KeyEsc:
		return []byte("\x1b")
	case tea.KeyCtrlLeft:
		return []byte("\x1b[1;5D")
	case tea.KeyCtrlRight:
		return []byte("\x1b[1;5C")
	default:
		return nil
	}
}
