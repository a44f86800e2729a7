// Package optimize merges native and OCR text into a consumption-ready form:
// ordered chunks sized for embedding, a document summary and a hint list of
// salient terms.
package optimize

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"docforge/internal/fault"
	"docforge/internal/models"
	"docforge/internal/util"

	"github.com/rs/zerolog"
)

type Optimizer struct {
	log          zerolog.Logger
	chunkSize    int
	chunkOverlap int
	// maxDocRunes bounds the merged text a single document may produce.
	maxDocRunes int
}

func New(log zerolog.Logger, chunkSize, chunkOverlap int) *Optimizer {
	if chunkSize <= 0 {
		chunkSize = 1200
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Optimizer{log: log, chunkSize: chunkSize, chunkOverlap: chunkOverlap, maxDocRunes: 50_000_000}
}

// Optimize merges per-page native blocks with that page's OCR text and chunks
// the result on paragraph boundaries. Chunk ids are pure functions of chunk
// content and position. An empty document yields an empty chunk list and a
// minimal summary, never an error.
func (o *Optimizer) Optimize(ctx context.Context, decomposed *models.DecomposedContent, ocrResults map[int][]models.OCRResult) (*models.OptimizedContent, error) {
	if decomposed == nil {
		return nil, fault.New(fault.InvalidInput, "nil decomposed content")
	}
	if err := ctx.Err(); err != nil {
		return nil, fault.Wrap(fault.Timeout, err, "optimize content")
	}

	out := &models.OptimizedContent{Chunks: make([]models.Chunk, 0, 16)}
	var docText strings.Builder
	totalRunes := 0
	idx := 0

	for _, page := range decomposed.Pages {
		pageText := mergePageText(page, ocrResults[page.PageNumber])
		if pageText == "" {
			continue
		}
		totalRunes += len([]rune(pageText))
		if totalRunes > o.maxDocRunes {
			return nil, fault.New(fault.OutOfMemory, "document text exceeds %d runes", o.maxDocRunes)
		}
		docText.WriteString(pageText)
		docText.WriteString("\n\n")

		for _, part := range util.ChunkText(pageText, o.chunkSize, o.chunkOverlap) {
			part = util.SanitizeText(part)
			if part == "" {
				continue
			}
			contentHash := util.SHA256Hex([]byte(part))
			out.Chunks = append(out.Chunks, models.Chunk{
				ChunkID:    util.SHA256Hex([]byte(fmt.Sprintf("%d:%s", idx, contentHash))),
				ChunkIndex: idx,
				Text:       part,
				PageStart:  page.PageNumber,
				PageEnd:    page.PageNumber,
				Metadata:   map[string]string{"content_hash": contentHash},
			})
			idx++
		}
	}

	out.Summary = summarize(docText.String())
	out.KeyEntities = keyTerms(docText.String(), 10)
	o.log.Debug().Int("chunks", len(out.Chunks)).Int("runes", totalRunes).Msg("content optimized")
	return out, nil
}

// mergePageText puts native blocks first in reading order, then table blocks,
// then OCR text, each paragraph-separated so provenance stays recoverable
// from chunk boundaries.
func mergePageText(page models.PageContent, ocr []models.OCRResult) string {
	parts := make([]string, 0, len(page.TextBlocks)+len(ocr))
	for _, block := range page.TextBlocks {
		if block.Source == "table" {
			continue
		}
		if c := strings.TrimSpace(block.Content); c != "" {
			parts = append(parts, c)
		}
	}
	for _, block := range page.TextBlocks {
		if block.Source != "table" {
			continue
		}
		if c := strings.TrimSpace(block.Content); c != "" {
			parts = append(parts, c)
		}
	}
	for _, r := range ocr {
		if c := strings.TrimSpace(r.Text); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

func summarize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "Document contains no extractable text."
	}
	sentences := splitSentences(text)
	var b strings.Builder
	for _, s := range sentences {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(s)
		if b.Len() >= 400 || strings.Count(b.String(), ".") >= 3 {
			break
		}
	}
	return b.String()
}

var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	raw := strings.Split(marked, "\x00")
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

var termPattern = regexp.MustCompile(`\b[A-Z][A-Za-z]{2,}\b`)

var stopTerms = map[string]struct{}{
	"The": {}, "This": {}, "That": {}, "These": {}, "Those": {}, "With": {},
	"From": {}, "When": {}, "Where": {}, "While": {}, "After": {}, "Before": {},
	"There": {}, "Their": {}, "Then": {}, "They": {}, "And": {}, "But": {},
}

// keyTerms is a cheap salience hint for downstream extraction: capitalized
// terms ranked by frequency.
func keyTerms(text string, limit int) []string {
	counts := map[string]int{}
	for _, m := range termPattern.FindAllString(text, -1) {
		if _, stop := stopTerms[m]; stop {
			continue
		}
		counts[m]++
	}
	terms := make([]string, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

// TextExtractionQuality is the share of pages that produced native text.
// It errors when the document has no pages at all, so an absent statistic is
// never mistaken for zero quality.
func TextExtractionQuality(decomposed *models.DecomposedContent) (float64, error) {
	if decomposed == nil || len(decomposed.Pages) == 0 {
		return 0, fault.New(fault.InvalidInput, "no pages to score")
	}
	withText := 0
	for _, page := range decomposed.Pages {
		for _, block := range page.TextBlocks {
			if strings.TrimSpace(block.Content) != "" {
				withText++
				break
			}
		}
	}
	return float64(withText) / float64(len(decomposed.Pages)), nil
}
