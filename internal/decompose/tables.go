package decompose

import (
	"strings"

	"docforge/internal/models"
)

// Column alignment tolerance in points and the minimum shape a region must
// have before it is called a table.
const (
	colTolerance = 4.0
	minTableRows = 2
	minTableCols = 2
)

// detectTables looks for runs of consecutive lines whose spans start at the
// same x positions. Such regions are emitted as tab-separated table blocks.
// The returned mask marks the lines a table claimed, so the prose pass can
// leave them out and each line lands in exactly one block.
func detectTables(lines []textLine) ([]models.TextBlock, []bool) {
	var blocks []models.TextBlock
	claimed := make([]bool, len(lines))
	var run []textLine
	var runIdx []int
	flush := func() {
		if len(run) >= minTableRows {
			blocks = append(blocks, tableBlock(run))
			for _, i := range runIdx {
				claimed[i] = true
			}
		}
		run = nil
		runIdx = nil
	}

	for i, l := range lines {
		cells := cellStarts(l)
		if len(cells) < minTableCols {
			flush()
			continue
		}
		if len(run) > 0 && !sameColumns(cellStarts(run[len(run)-1]), cells) {
			flush()
		}
		run = append(run, l)
		runIdx = append(runIdx, i)
	}
	flush()
	return blocks, claimed
}

// cellStarts returns the x positions where a new cell begins: the first span
// plus every span separated from its predecessor by a wide gap.
func cellStarts(l textLine) []float64 {
	if len(l.spans) == 0 {
		return nil
	}
	starts := []float64{l.spans[0].x}
	for i := 1; i < len(l.spans); i++ {
		prev := l.spans[i-1]
		if l.spans[i].x-(prev.x+prev.w) > prev.size*2 {
			starts = append(starts, l.spans[i].x)
		}
	}
	return starts
}

func sameColumns(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if abs(a[i]-b[i]) > colTolerance {
			return false
		}
	}
	return true
}

func tableBlock(rows []textLine) models.TextBlock {
	bbox := models.BBox{X0: rows[0].minX(), Y0: rows[len(rows)-1].y, X1: rows[0].maxX(), Y1: rows[0].y + rows[0].size}
	out := make([]string, 0, len(rows))
	for _, l := range rows {
		cells := make([]string, 0, len(l.spans))
		var cur strings.Builder
		for i, s := range l.spans {
			if i > 0 {
				prev := l.spans[i-1]
				gap := s.x - (prev.x + prev.w)
				if gap > prev.size*2 {
					cells = append(cells, strings.TrimSpace(cur.String()))
					cur.Reset()
				} else if gap > prev.size*0.33 {
					cur.WriteString(" ")
				}
			}
			cur.WriteString(s.text)
		}
		if c := strings.TrimSpace(cur.String()); c != "" {
			cells = append(cells, c)
		}
		out = append(out, strings.Join(cells, "\t"))
		if l.minX() < bbox.X0 {
			bbox.X0 = l.minX()
		}
		if l.maxX() > bbox.X1 {
			bbox.X1 = l.maxX()
		}
	}
	return models.TextBlock{Content: strings.Join(out, "\n"), BBox: bbox, Source: "table"}
}
