package decompose

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"docforge/internal/fault"
	"docforge/internal/pdftest"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newDecomposer() *Decomposer {
	return New(zerolog.Nop(), 0)
}

func TestDecomposeSinglePageText(t *testing.T) {
	path := pdftest.WriteFile(t, t.TempDir(), "hello.pdf", pdftest.Page{Text: "Hello"})

	content, err := newDecomposer().Decompose(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, content.Pages, 1)
	page := content.Pages[0]
	require.Equal(t, 1, page.PageNumber)
	require.NotEmpty(t, page.TextBlocks)
	require.Equal(t, "Hello", page.TextBlocks[0].Content)
	require.Equal(t, "native", page.TextBlocks[0].Source)
}

func TestDecomposePageNumbersAreOneBasedAndOrdered(t *testing.T) {
	path := pdftest.WriteFile(t, t.TempDir(), "multi.pdf",
		pdftest.Page{Text: "first"}, pdftest.Page{Text: "second"}, pdftest.Page{Text: "third"})

	content, err := newDecomposer().Decompose(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, content.Pages, 3)
	for i, page := range content.Pages {
		require.Equal(t, i+1, page.PageNumber)
	}
	require.Equal(t, "second", content.Pages[1].TextBlocks[0].Content)
}

func TestExtractPageNegativeIndex(t *testing.T) {
	path := pdftest.WriteFile(t, t.TempDir(), "one.pdf", pdftest.Page{Text: "x"})
	f, r, err := pdf.Open(path)
	require.NoError(t, err)
	defer f.Close()

	xref := 0
	_, err = newDecomposer().extractPage(r, -1, &xref)
	require.Error(t, err)
	require.Equal(t, fault.InvalidInput, fault.KindOf(err))
}

func TestDecomposeImages(t *testing.T) {
	path := pdftest.WriteFile(t, t.TempDir(), "img.pdf", pdftest.Page{Text: "pic", WithImage: true})

	content, err := newDecomposer().Decompose(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, content.Pages[0].Images, 1)
	img := content.Pages[0].Images[0]
	require.Equal(t, 2, img.Width)
	require.Equal(t, 2, img.Height)
	require.Equal(t, "DeviceGray", img.ColorSpace)
	require.Equal(t, 1, img.XRef)
}

func TestDecomposeImageOverPixelLimit(t *testing.T) {
	path := pdftest.WriteFile(t, t.TempDir(), "img.pdf", pdftest.Page{Text: "pic", WithImage: true})

	d := New(zerolog.Nop(), 1) // 2x2 image exceeds a 1-pixel budget
	_, err := d.Decompose(context.Background(), path)
	require.Error(t, err)
	require.Equal(t, fault.OutOfMemory, fault.KindOf(err))
}

func TestDecomposeAnnotations(t *testing.T) {
	path := pdftest.WriteFile(t, t.TempDir(), "annot.pdf", pdftest.Page{
		Text:  "body",
		Annot: &pdftest.Annot{Author: "alice", Content: "looks wrong"},
	})

	content, err := newDecomposer().Decompose(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, content.Pages[0].Annotations, 1)
	ann := content.Pages[0].Annotations[0]
	require.Equal(t, "Text", ann.Type)
	require.Equal(t, "alice", ann.Author)
	require.Equal(t, "looks wrong", ann.Content)
	require.NotEmpty(t, ann.CreatedAt)
	require.Equal(t, []float64{1, 0, 0}, ann.Color)
	require.NotNil(t, ann.BBox)
}

func TestDecomposeCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf at all"), 0o644))

	_, err := newDecomposer().Decompose(context.Background(), path)
	require.Error(t, err)
	require.Equal(t, fault.InvalidInput, fault.KindOf(err))
}

func TestBuildLinesReadingOrder(t *testing.T) {
	texts := []pdf.Text{
		{X: 72, Y: 700, W: 30, FontSize: 12, S: "lower"},
		{X: 72, Y: 720, W: 30, FontSize: 12, S: "upper"},
		{X: 110, Y: 720, W: 30, FontSize: 12, S: "right"},
	}
	lines := buildLines(texts)
	require.Len(t, lines, 2)
	require.Equal(t, "upper right", lines[0].content())
	require.Equal(t, "lower", lines[1].content())
}

func TestBuildBlocksSplitsOnVerticalGap(t *testing.T) {
	lines := []textLine{
		{y: 720, size: 12, spans: []span{{x: 72, w: 40, size: 12, text: "para one"}}},
		{y: 706, size: 12, spans: []span{{x: 72, w: 40, size: 12, text: "continues"}}},
		{y: 600, size: 12, spans: []span{{x: 72, w: 40, size: 12, text: "para two"}}},
	}
	blocks := buildBlocks(lines)
	require.Len(t, blocks, 2)
	require.Equal(t, "para one\ncontinues", blocks[0].Content)
	require.Equal(t, "para two", blocks[1].Content)
}

func TestDetectTables(t *testing.T) {
	row := func(y float64, a, b, c string) textLine {
		return textLine{y: y, size: 10, spans: []span{
			{x: 72, w: 30, size: 10, text: a},
			{x: 200, w: 30, size: 10, text: b},
			{x: 340, w: 30, size: 10, text: c},
		}}
	}
	lines := []textLine{
		row(700, "name", "count", "score"),
		row(686, "alpha", "3", "0.91"),
		row(672, "beta", "7", "0.44"),
		{y: 600, size: 12, spans: []span{{x: 72, w: 300, size: 12, text: "plain paragraph afterwards"}}},
	}
	blocks, claimed := detectTables(lines)
	require.Len(t, blocks, 1)
	require.Equal(t, "table", blocks[0].Source)
	require.Contains(t, blocks[0].Content, "name\tcount\tscore")
	require.Contains(t, blocks[0].Content, "beta\t7\t0.44")
	require.Equal(t, []bool{true, true, true, false}, claimed)
}

func TestDetectTablesIgnoresProse(t *testing.T) {
	lines := []textLine{
		{y: 720, size: 12, spans: []span{{x: 72, w: 200, size: 12, text: "just a sentence"}}},
		{y: 706, size: 12, spans: []span{{x: 72, w: 200, size: 12, text: "another sentence"}}},
	}
	blocks, claimed := detectTables(lines)
	require.Empty(t, blocks)
	require.Equal(t, []bool{false, false}, claimed)
}

func TestPageBlocksKeepTableLinesOutOfProse(t *testing.T) {
	row := func(y float64, a, b, c string) textLine {
		return textLine{y: y, size: 10, spans: []span{
			{x: 72, w: 30, size: 10, text: a},
			{x: 200, w: 30, size: 10, text: b},
			{x: 340, w: 30, size: 10, text: c},
		}}
	}
	lines := []textLine{
		{y: 720, size: 12, spans: []span{{x: 72, w: 300, size: 12, text: "intro paragraph"}}},
		row(700, "name", "count", "score"),
		row(686, "alpha", "3", "0.91"),
		row(672, "beta", "7", "0.44"),
		{y: 600, size: 12, spans: []span{{x: 72, w: 300, size: 12, text: "closing paragraph"}}},
	}

	blocks := pageBlocks(lines)
	require.Len(t, blocks, 3)

	// Cell text must appear only in the table block, never in a prose block.
	for _, b := range blocks {
		switch b.Source {
		case "native":
			require.NotContains(t, b.Content, "alpha")
			require.NotContains(t, b.Content, "count")
		case "table":
			require.Contains(t, b.Content, "alpha\t3\t0.91")
		}
	}
	require.Equal(t, "intro paragraph", blocks[0].Content)
	require.Equal(t, "closing paragraph", blocks[1].Content)
	require.Equal(t, "table", blocks[2].Source)
}
