// Package decompose extracts per-page text blocks, images, annotations and
// vector drawings from a PDF, plus document-level metadata and outline. Two
// engines run over every page: the structural engine walks the parsed
// content stream for positioned text and resources, and a table-aware engine
// re-reads the positioned lines for aligned columns. Lines claimed by a
// table are kept out of the prose blocks, so every line lands in exactly
// one block.
package decompose

import (
	"context"
	"io"
	"strings"

	"docforge/internal/fault"
	"docforge/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

type Decomposer struct {
	log zerolog.Logger
	// MaxImagePixels bounds decoded image size; larger images fail the page
	// with OutOfMemory instead of exhausting the worker.
	MaxImagePixels int
}

func New(log zerolog.Logger, maxImagePixels int) *Decomposer {
	if maxImagePixels <= 0 {
		maxImagePixels = 64_000_000
	}
	return &Decomposer{log: log, MaxImagePixels: maxImagePixels}
}

// Decompose reads every page of the document. Pages are one-based and
// returned in order. No state is retained between calls.
func (d *Decomposer) Decompose(ctx context.Context, path string) (out *models.DecomposedContent, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fault.New(fault.InvalidInput, "corrupt document %s: %v", path, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, fault.Wrap(fault.Timeout, err, "decompose %s", path)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fault.Wrap(fault.InvalidInput, err, "open document %s", path)
	}
	defer f.Close()

	content := &models.DecomposedContent{
		Pages:    make([]models.PageContent, 0, r.NumPage()),
		Metadata: documentInfo(r),
		Structure: models.Structure{
			Outline: convertOutline(r.Outline().Child),
		},
	}

	fontSet := map[string]struct{}{}
	xref := 0
	for i := 0; i < r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fault.Wrap(fault.Timeout, err, "decompose %s page %d", path, i+1)
		}
		page, err := d.extractPage(r, i, &xref)
		if err != nil {
			return nil, err
		}
		content.Pages = append(content.Pages, page)
		for _, name := range r.Page(i + 1).Fonts() {
			fontSet[name] = struct{}{}
		}
	}
	for name := range fontSet {
		content.Fonts = append(content.Fonts, name)
	}

	d.log.Debug().Str("path", path).Int("pages", len(content.Pages)).Msg("document decomposed")
	return content, nil
}

// extractPage builds the content of one page from its zero-based index. The
// returned page number is always zeroIdx+1.
func (d *Decomposer) extractPage(r *pdf.Reader, zeroIdx int, xref *int) (models.PageContent, error) {
	if zeroIdx < 0 {
		return models.PageContent{}, fault.New(fault.InvalidInput, "negative page index %d", zeroIdx)
	}
	if zeroIdx >= r.NumPage() {
		return models.PageContent{}, fault.New(fault.InvalidInput, "page index %d out of range (%d pages)", zeroIdx, r.NumPage())
	}
	page := r.Page(zeroIdx + 1)
	if page.V.IsNull() {
		return models.PageContent{}, fault.New(fault.InvalidInput, "missing page %d", zeroIdx+1)
	}

	pc := models.PageContent{PageNumber: zeroIdx + 1}

	content := page.Content()
	pc.TextBlocks = pageBlocks(buildLines(content.Text))

	for _, rect := range content.Rect {
		pc.Drawings = append(pc.Drawings, models.Drawing{
			Type: "rect",
			BBox: models.BBox{X0: rect.Min.X, Y0: rect.Min.Y, X1: rect.Max.X, Y1: rect.Max.Y},
			// One rectangle primitive per catalogued drawing.
			Items: 1,
		})
	}

	images, err := d.extractImages(page, xref)
	if err != nil {
		return models.PageContent{}, err
	}
	pc.Images = images
	pc.Annotations = extractAnnotations(page)
	return pc, nil
}

// pageBlocks combines the two engines over one page's positioned lines.
// Table regions run first; the lines they claim stay out of the prose
// blocks so table text reaches the chunk stream exactly once.
func pageBlocks(lines []textLine) []models.TextBlock {
	tables, claimed := detectTables(lines)
	prose := make([]textLine, 0, len(lines))
	for i, l := range lines {
		if !claimed[i] {
			prose = append(prose, l)
		}
	}
	return append(buildBlocks(prose), tables...)
}

func (d *Decomposer) extractImages(page pdf.Page, xref *int) (out []models.ImageRef, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fault.New(fault.Unsupported, "unsupported image encoding: %v", r)
		}
	}()

	res := page.V.Key("Resources")
	xo := res.Key("XObject")
	if xo.Kind() != pdf.Dict {
		return nil, nil
	}
	for _, name := range xo.Keys() {
		obj := xo.Key(name)
		if obj.Kind() != pdf.Stream || obj.Key("Subtype").Name() != "Image" {
			continue
		}
		w := int(obj.Key("Width").Int64())
		h := int(obj.Key("Height").Int64())
		if w > 0 && h > 0 && w*h > d.MaxImagePixels {
			return nil, fault.New(fault.OutOfMemory, "image %s is %dx%d, exceeds pixel limit %d", name, w, h, d.MaxImagePixels)
		}
		*xref++
		ref := models.ImageRef{
			Name:       name,
			Width:      w,
			Height:     h,
			ColorSpace: colorSpaceName(obj.Key("ColorSpace")),
			XRef:       *xref,
		}
		if rd := obj.Reader(); rd != nil {
			data, readErr := io.ReadAll(io.LimitReader(rd, int64(d.MaxImagePixels)))
			_ = rd.Close()
			if readErr == nil {
				ref.Data = data
			}
		}
		out = append(out, ref)
	}
	return out, nil
}

func extractAnnotations(page pdf.Page) []models.Annotation {
	annots := page.V.Key("Annots")
	if annots.Kind() != pdf.Array {
		return nil
	}
	out := make([]models.Annotation, 0, annots.Len())
	for i := 0; i < annots.Len(); i++ {
		a := annots.Index(i)
		if a.Kind() != pdf.Dict {
			continue
		}
		ann := models.Annotation{
			Type:       a.Key("Subtype").Name(),
			Author:     a.Key("T").Text(),
			Content:    a.Key("Contents").Text(),
			CreatedAt:  a.Key("CreationDate").Text(),
			ModifiedAt: a.Key("M").Text(),
		}
		if c := a.Key("C"); c.Kind() == pdf.Array {
			for j := 0; j < c.Len(); j++ {
				ann.Color = append(ann.Color, c.Index(j).Float64())
			}
		}
		if rect := a.Key("Rect"); rect.Kind() == pdf.Array && rect.Len() == 4 {
			ann.BBox = &models.BBox{
				X0: rect.Index(0).Float64(),
				Y0: rect.Index(1).Float64(),
				X1: rect.Index(2).Float64(),
				Y1: rect.Index(3).Float64(),
			}
		}
		out = append(out, ann)
	}
	return out
}

func documentInfo(r *pdf.Reader) map[string]string {
	meta := map[string]string{}
	info := r.Trailer().Key("Info")
	if info.Kind() != pdf.Dict {
		return meta
	}
	for _, key := range []string{"Title", "Author", "Subject", "Keywords", "Creator", "Producer", "CreationDate", "ModDate"} {
		if v := strings.TrimSpace(info.Key(key).Text()); v != "" {
			meta[strings.ToLower(key)] = v
		}
	}
	return meta
}

func convertOutline(items []pdf.Outline) []models.OutlineItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]models.OutlineItem, 0, len(items))
	for _, it := range items {
		out = append(out, models.OutlineItem{
			Title:    it.Title,
			Children: convertOutline(it.Child),
		})
	}
	return out
}

func colorSpaceName(v pdf.Value) string {
	switch v.Kind() {
	case pdf.Name:
		return v.Name()
	case pdf.Array:
		if v.Len() > 0 {
			return v.Index(0).Name()
		}
	}
	return ""
}
