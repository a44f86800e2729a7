package decompose

import (
	"sort"
	"strings"

	"docforge/internal/models"

	"github.com/ledongthuc/pdf"
)

// yTolerance groups glyphs onto the same visual line.
const yTolerance = 2.0

type span struct {
	x, w, size float64
	text       string
}

type textLine struct {
	y     float64
	size  float64
	spans []span
}

func (l textLine) minX() float64 { return l.spans[0].x }
func (l textLine) maxX() float64 {
	last := l.spans[len(l.spans)-1]
	return last.x + last.w
}

func (l textLine) content() string {
	var b strings.Builder
	for i, s := range l.spans {
		if i > 0 {
			prev := l.spans[i-1]
			gap := s.x - (prev.x + prev.w)
			// A gap wider than a third of the font size is a word break.
			if gap > prev.size*0.33 {
				b.WriteString(" ")
			}
		}
		b.WriteString(s.text)
	}
	return strings.TrimSpace(b.String())
}

// buildLines groups positioned glyph runs into lines in reading order:
// top of the page first, left to right within a line.
func buildLines(texts []pdf.Text) []textLine {
	if len(texts) == 0 {
		return nil
	}
	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if diff := sorted[i].Y - sorted[j].Y; diff > yTolerance || diff < -yTolerance {
			return sorted[i].Y > sorted[j].Y // PDF y grows upward
		}
		return sorted[i].X < sorted[j].X
	})

	lines := make([]textLine, 0, 16)
	for _, t := range sorted {
		s := span{x: t.X, w: t.W, size: t.FontSize, text: t.S}
		if n := len(lines); n > 0 && abs(lines[n-1].y-t.Y) <= yTolerance {
			lines[n-1].spans = append(lines[n-1].spans, s)
			continue
		}
		size := t.FontSize
		if size <= 0 {
			size = 12
		}
		lines = append(lines, textLine{y: t.Y, size: size, spans: []span{s}})
	}
	return lines
}

// buildBlocks merges consecutive lines into paragraph blocks. A vertical gap
// larger than 1.6x the font size starts a new block.
func buildBlocks(lines []textLine) []models.TextBlock {
	if len(lines) == 0 {
		return nil
	}
	blocks := make([]models.TextBlock, 0, 4)
	var cur []textLine
	flush := func() {
		if len(cur) == 0 {
			return
		}
		parts := make([]string, 0, len(cur))
		bbox := models.BBox{X0: cur[0].minX(), Y0: cur[0].y, X1: cur[0].maxX(), Y1: cur[0].y + cur[0].size}
		for _, l := range cur {
			if c := l.content(); c != "" {
				parts = append(parts, c)
			}
			if l.minX() < bbox.X0 {
				bbox.X0 = l.minX()
			}
			if l.maxX() > bbox.X1 {
				bbox.X1 = l.maxX()
			}
			if l.y < bbox.Y0 {
				bbox.Y0 = l.y
			}
			if top := l.y + l.size; top > bbox.Y1 {
				bbox.Y1 = top
			}
		}
		content := strings.TrimSpace(strings.Join(parts, "\n"))
		if content != "" {
			blocks = append(blocks, models.TextBlock{Content: content, BBox: bbox, Source: "native"})
		}
		cur = nil
	}

	for i, l := range lines {
		if i > 0 {
			prev := lines[i-1]
			if prev.y-l.y > prev.size*1.6 {
				flush()
			}
		}
		cur = append(cur, l)
	}
	flush()
	return blocks
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
