package ui

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// RadioGroup lets the user pick exactly one of its options, stacked vertically.
type RadioGroup struct {
	Label    string
	Options  []string
	Selected int
	X, Y     float64
	Size     float64
	clicked  bool

	// OnSelect is called when the user picks another option.
	OnSelect func(index int, option string)
}

// NewRadioGroup creates a radio group, an out of range selected picks the first option.
func NewRadioGroup(x, y float64, label string, options []string, selected int) *RadioGroup {
	if selected < 0 || selected >= len(options) {
		selected = 0
	}
	return &RadioGroup{
		Label:    label,
		Options:  options,
		Selected: selected,
		X:        x,
		Y:        y,
		Size:     14,
	}
}

func (r *RadioGroup) rowHeight() float64 {
	return r.Size + 4
}

// Height is the extent of all the rows.
func (r *RadioGroup) Height() float64 {
	return float64(len(r.Options)) * r.rowHeight()
}

// Value returns the selected option.
func (r *RadioGroup) Value() string {
	if r.Selected < 0 || r.Selected >= len(r.Options) {
		return ""
	}
	return r.Options[r.Selected]
}

// Update checks for mouse interaction
func (r *RadioGroup) Update() {
	mx, my := ebiten.CursorPosition()
	r.handle(float64(mx), float64(my), ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft))
}

func (r *RadioGroup) handle(mx, my float64, pressed bool) {
	if !pressed {
		r.clicked = false
		return
	}
	if r.clicked || mx < r.X || mx > r.X+r.Size || my < r.Y || my >= r.Y+r.Height() {
		return
	}
	r.clicked = true

	i := int((my - r.Y) / r.rowHeight())
	if i == r.Selected || i >= len(r.Options) {
		return
	}
	r.Selected = i
	if r.OnSelect != nil {
		r.OnSelect(i, r.Options[i])
	}
}

// Draw renders one circle per option, the selected one filled
func (r *RadioGroup) Draw(screen *ebiten.Image) {
	half := float32(r.Size / 2)
	for i, option := range r.Options {
		y := r.Y + float64(i)*r.rowHeight()
		cx, cy := float32(r.X)+half, float32(y)+half

		vector.StrokeCircle(screen, cx, cy, half, 2, color.RGBA{R: 200, G: 200, B: 200, A: 255}, true)
		if i == r.Selected {
			vector.FillCircle(screen, cx, cy, half-3, color.RGBA{R: 100, G: 200, B: 100, A: 255}, true)
		}
		ebitenutil.DebugPrintAt(screen, option, int(r.X+r.Size+8), int(y))
	}
}
