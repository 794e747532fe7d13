package ui

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// Slider is a simple UI widget
type Slider struct {
	Label    string
	Value    float64
	Min, Max float64
	X, Y     float64
	W, H     float64

	// OnChange is called with the new value whenever a drag moves it.
	OnChange func(value float64)
}

// NewSlider creates a new slider instance, value is clamped to [min, max].
func NewSlider(x, y, w float64, label string, min, max, value float64) *Slider {
	s := &Slider{
		Label: label,
		Min:   min,
		Max:   max,
		X:     x,
		Y:     y,
		W:     w,
		H:     10,
	}
	s.Value = s.clamp(value)
	return s
}

// Update checks for mouse interaction
func (s *Slider) Update() {
	mx, my := ebiten.CursorPosition()
	s.handle(float64(mx), float64(my), ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft))
}

func (s *Slider) handle(mx, my float64, pressed bool) {
	if !pressed || !s.contains(mx, my) || s.W <= 0 {
		return
	}
	// Calculate value based on horizontal position
	p := (mx - s.X) / s.W
	v := s.clamp(s.Min + p*(s.Max-s.Min))
	if v == s.Value {
		return
	}
	s.Value = v
	if s.OnChange != nil {
		s.OnChange(v)
	}
}

func (s *Slider) contains(mx, my float64) bool {
	return mx >= s.X && mx <= s.X+s.W && my >= s.Y && my <= s.Y+s.H
}

func (s *Slider) clamp(v float64) float64 {
	return min(max(v, s.Min), s.Max)
}

// ratio is the filled fraction of the bar.
func (s *Slider) ratio() float64 {
	if s.Max <= s.Min {
		return 0
	}
	return (s.Value - s.Min) / (s.Max - s.Min)
}

// Draw renders the slider
func (s *Slider) Draw(screen *ebiten.Image) {
	// Draw Background (Dark Gray)
	vector.FillRect(screen, float32(s.X), float32(s.Y), float32(s.W), float32(s.H), color.RGBA{R: 80, G: 80, B: 80, A: 255}, true)

	// Draw Value Bar (Light Gray/White)
	vector.FillRect(screen, float32(s.X), float32(s.Y), float32(s.W*s.ratio()), float32(s.H), color.RGBA{R: 200, G: 200, B: 200, A: 255}, true)
}
