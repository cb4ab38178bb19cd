package ui

import "strings"

// Sparkline keeps a ring of samples and renders them with block characters.
type Sparkline struct {
	samples []float64
	width   int
	head    int
	count   int
}

// SparklineChars are the eight bar heights, lowest first.
var SparklineChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// NewSparkline creates a sparkline holding width samples (default 60, one
// minute at one sample per second).
func NewSparkline(width int) *Sparkline {
	if width <= 0 {
		width = 60
	}
	return &Sparkline{samples: make([]float64, width), width: width}
}

// Add appends a sample, overwriting the oldest once full.
func (s *Sparkline) Add(value float64) {
	s.samples[s.head] = value
	s.head = (s.head + 1) % s.width
	s.count++
}

// Count returns how many samples were added in total.
func (s *Sparkline) Count() int {
	return s.count
}

// Last returns the newest sample, or zero when empty.
func (s *Sparkline) Last() float64 {
	if s.count == 0 {
		return 0
	}
	return s.samples[(s.head-1+s.width)%s.width]
}

// values returns the held samples oldest first.
func (s *Sparkline) values() []float64 {
	n := min(s.count, s.width)
	out := make([]float64, 0, n)
	start := 0
	if s.count >= s.width {
		start = s.head
	}
	for i := 0; i < n; i++ {
		out = append(out, s.samples[(start+i)%s.width])
	}
	return out
}

// Render renders every held sample, padding with spaces until full.
func (s *Sparkline) Render() string {
	return s.RenderWithWidth(s.width)
}

// RenderWithWidth renders the newest width samples, right-aligned. Bars are
// scaled to the largest visible sample; an all-zero window is flat.
func (s *Sparkline) RenderWithWidth(width int) string {
	if width <= 0 {
		return ""
	}
	vals := s.values()
	if len(vals) > width {
		vals = vals[len(vals)-width:]
	}

	peak := 0.0
	for _, v := range vals {
		peak = max(peak, v)
	}

	var sb strings.Builder
	sb.Grow(width * 3)
	sb.WriteString(strings.Repeat(" ", width-len(vals)))
	top := len(SparklineChars) - 1
	for _, v := range vals {
		idx := 0
		if peak > 0 {
			idx = int(v / peak * float64(top))
		}
		idx = max(0, min(idx, top))
		sb.WriteRune(SparklineChars[idx])
	}
	return sb.String()
}
