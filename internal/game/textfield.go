package game

import (
	"strings"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// textField is a minimal single-line input: typed runes, backspace with
// hold-repeat, and Ctrl+V paste from the system clipboard.
type textField struct {
	value   string
	maxLen  int
	focused bool
}

func (f *textField) update() {
	if !f.focused {
		return
	}

	for _, r := range ebiten.AppendInputChars(nil) {
		if r < ' ' {
			continue
		}
		if f.maxLen > 0 && utf8.RuneCountInString(f.value) >= f.maxLen {
			break
		}
		f.value += string(r)
	}

	if backspaceTriggered() && len(f.value) > 0 {
		runes := []rune(f.value)
		f.value = string(runes[:len(runes)-1])
	}

	ctrl := ebiten.IsKeyPressed(ebiten.KeyControl) || ebiten.IsKeyPressed(ebiten.KeyMeta)
	if ctrl && inpututil.IsKeyJustPressed(ebiten.KeyV) {
		if s, err := clipboard.ReadAll(); err == nil {
			s = strings.Map(func(r rune) rune {
				if r < ' ' {
					return -1
				}
				return r
			}, s)
			f.value = truncateRunes(f.value+s, f.maxLen)
		}
	}
}

// truncateRunes caps s at max runes. Cutting on a byte index instead
// would split a multi-byte rune and leave invalid UTF-8 in the field.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// backspaceTriggered fires once on press, then repeats after a short hold.
func backspaceTriggered() bool {
	d := inpututil.KeyPressDuration(ebiten.KeyBackspace)
	if d == 1 {
		return true
	}
	return d > 30 && d%3 == 0
}

func (f *textField) clear() { f.value = "" }
