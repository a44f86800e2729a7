// Package pdftest builds minimal, well-formed PDF fixtures for tests. The
// files use uncompressed streams and a hand-assembled xref table so that the
// structural parser can read them without any external tooling.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type Annot struct {
	Author  string
	Content string
}

type Page struct {
	Text      string
	WithImage bool
	Annot     *Annot
}

// Build assembles a single PDF from the given pages. Object layout:
// 1=Catalog, 2=Pages, 3=Font, then per page: page dict, content stream and,
// when requested, an image XObject and annotation dict.
func Build(pages ...Page) []byte {
	if len(pages) == 0 {
		pages = []Page{{Text: "blank"}}
	}

	type object struct {
		num  int
		body string
	}
	objs := make([]object, 0, 3+3*len(pages))
	next := 4

	pageNums := make([]int, len(pages))
	for i, p := range pages {
		contentNum := next
		next++
		imageNum := 0
		if p.WithImage {
			imageNum = next
			next++
		}
		annotNum := 0
		if p.Annot != nil {
			annotNum = next
			next++
		}
		pageNum := next
		next++
		pageNums[i] = pageNum

		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", escape(p.Text))
		if p.WithImage {
			stream += " q 100 0 0 50 50 600 cm /Im0 Do Q"
		}
		objs = append(objs, object{contentNum, fmt.Sprintf(
			"<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream)})

		if p.WithImage {
			pixels := string([]byte{0x00, 0x7f, 0xbf, 0xff})
			objs = append(objs, object{imageNum, fmt.Sprintf(
				"<< /Type /XObject /Subtype /Image /Width 2 /Height 2 /ColorSpace /DeviceGray /BitsPerComponent 8 /Length %d >>\nstream\n%s\nendstream",
				len(pixels), pixels)})
		}
		if p.Annot != nil {
			objs = append(objs, object{annotNum, fmt.Sprintf(
				"<< /Type /Annot /Subtype /Text /Rect [100 100 120 120] /Contents (%s) /T (%s) /CreationDate (D:20240101000000Z) /M (D:20240102030405Z) /C [1 0 0] >>",
				escape(p.Annot.Content), escape(p.Annot.Author))})
		}

		resources := "<< /Font << /F1 3 0 R >>"
		if p.WithImage {
			resources += fmt.Sprintf(" /XObject << /Im0 %d 0 R >>", imageNum)
		}
		resources += " >>"
		pageBody := fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources %s /Contents %d 0 R",
			resources, contentNum)
		if p.Annot != nil {
			pageBody += fmt.Sprintf(" /Annots [%d 0 R]", annotNum)
		}
		pageBody += " >>"
		objs = append(objs, object{pageNum, pageBody})
	}

	kids := make([]string, len(pageNums))
	for i, n := range pageNums {
		kids[i] = fmt.Sprintf("%d 0 R", n)
	}
	head := []object{
		{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		{2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))},
		{3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"},
	}
	objs = append(head, objs...)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make(map[int]int, len(objs))
	for _, o := range objs {
		offsets[o.num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", o.num, o.body)
	}

	xrefStart := buf.Len()
	size := next
	fmt.Fprintf(&buf, "xref\n0 %d\n", size)
	buf.WriteString("0000000000 65535 f \n")
	for n := 1; n < size; n++ {
		fmt.Fprintf(&buf, "%010d %05d n \n", offsets[n], 0)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", size, xrefStart)
	return buf.Bytes()
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "(", "\\(")
	s = strings.ReplaceAll(s, ")", "\\)")
	return s
}

// WriteFile writes a fixture PDF under dir and returns its path.
func WriteFile(t *testing.T, dir, name string, pages ...Page) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Build(pages...), 0o644); err != nil {
		t.Fatalf("write fixture pdf: %v", err)
	}
	return path
}
