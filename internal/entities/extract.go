// Package entities performs named-entity recognition and relationship
// inference over optimized chunks. Recognition is heuristic and deterministic;
// entities are normalized to canonical form before any relationship is
// inferred, and a relationship always connects two resolved entities.
package entities

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"docforge/internal/fault"
	"docforge/internal/models"

	"github.com/rs/zerolog"
)

type Extractor struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Extractor {
	return &Extractor{log: log}
}

// Extract recognizes entities in every chunk, deduplicates them by canonical
// form, then infers relationships from sentence-level co-occurrence. A chunk
// list with nothing recognizable yields empty lists, not an error.
func (e *Extractor) Extract(ctx context.Context, optimized *models.OptimizedContent) (*models.Extraction, error) {
	if optimized == nil {
		return nil, fault.New(fault.InvalidInput, "nil optimized content")
	}
	if err := ctx.Err(); err != nil {
		return nil, fault.Wrap(fault.Timeout, err, "extract entities")
	}

	byCanonical := map[string]*models.Entity{}
	order := make([]string, 0, 32)
	relationships := make([]models.Relationship, 0, 16)
	relSeen := map[string]struct{}{}

	for _, chunk := range optimized.Chunks {
		mentions := recognize(chunk.Text)
		for _, m := range mentions {
			canonical := CanonicalName(m.text)
			if canonical == "" {
				continue
			}
			ent, ok := byCanonical[canonical]
			if !ok {
				ent = &models.Entity{
					Text:       m.text,
					Canonical:  canonical,
					Type:       m.entityType,
					Confidence: m.confidence,
					ChunkIndex: chunk.ChunkIndex,
				}
				byCanonical[canonical] = ent
				order = append(order, canonical)
			}
			ent.Mentions++
			if m.confidence > ent.Confidence {
				ent.Confidence = m.confidence
				ent.Type = m.entityType
			}
		}

		for _, rel := range inferRelationships(chunk, mentions, byCanonical) {
			key := rel.Source + "|" + rel.Type + "|" + rel.Target
			if _, dup := relSeen[key]; dup {
				continue
			}
			relSeen[key] = struct{}{}
			relationships = append(relationships, rel)
		}
	}

	out := &models.Extraction{
		Entities:      make([]models.Entity, 0, len(order)),
		Relationships: relationships,
	}
	for _, canonical := range order {
		out.Entities = append(out.Entities, *byCanonical[canonical])
	}
	e.log.Debug().Int("entities", len(out.Entities)).Int("relationships", len(out.Relationships)).Msg("extraction complete")
	return out, nil
}

var whitespace = regexp.MustCompile(`\s+`)

// CanonicalName collapses case, separators and surrounding punctuation so
// that mentions of the same entity share one graph node.
func CanonicalName(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.Trim(s, ".,;:()[]\"'")
	s = strings.ReplaceAll(s, "_", " ")
	s = whitespace.ReplaceAllString(s, " ")
	return s
}

type mention struct {
	text       string
	entityType string
	confidence float64
	offset     int
}

var (
	datePattern  = regexp.MustCompile(`\b(?:\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4})\b`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	urlPattern   = regexp.MustCompile(`\bhttps?://[^\s)>\]]+`)
	properRun    = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
	honorific    = regexp.MustCompile(`\b(?:Dr|Mr|Mrs|Ms|Prof|Professor)\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)
)

var orgSuffixes = []string{
	"Inc", "Corp", "Corporation", "Ltd", "LLC", "GmbH",
	"University", "Institute", "Laboratories", "Labs",
	"Company", "Foundation", "Group", "Agency",
}

var knownLocations = map[string]struct{}{
	"London": {}, "Paris": {}, "Berlin": {}, "Tokyo": {}, "New York": {},
	"San Francisco": {}, "Boston": {}, "Chicago": {}, "Geneva": {},
	"United States": {}, "United Kingdom": {}, "Germany": {}, "France": {},
	"Japan": {}, "China": {}, "India": {}, "Canada": {}, "Australia": {},
}

func recognize(text string) []mention {
	var out []mention
	claimed := make([]bool, len(text))
	claim := func(start, end int) bool {
		for i := start; i < end && i < len(claimed); i++ {
			if claimed[i] {
				return false
			}
		}
		for i := start; i < end && i < len(claimed); i++ {
			claimed[i] = true
		}
		return true
	}

	for _, loc := range datePattern.FindAllStringIndex(text, -1) {
		if claim(loc[0], loc[1]) {
			out = append(out, mention{text[loc[0]:loc[1]], "date", 0.9, loc[0]})
		}
	}
	for _, loc := range emailPattern.FindAllStringIndex(text, -1) {
		if claim(loc[0], loc[1]) {
			out = append(out, mention{text[loc[0]:loc[1]], "email", 0.95, loc[0]})
		}
	}
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		if claim(loc[0], loc[1]) {
			out = append(out, mention{text[loc[0]:loc[1]], "url", 0.95, loc[0]})
		}
	}
	for _, m := range honorific.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2], m[3]
		if claim(m[0], m[1]) {
			out = append(out, mention{text[start:end], "person", 0.85, start})
		}
	}
	for _, loc := range properRun.FindAllStringIndex(text, -1) {
		candidate := text[loc[0]:loc[1]]
		mtype, conf := classifyProper(candidate, loc[0], text)
		if mtype == "" {
			continue
		}
		if claim(loc[0], loc[1]) {
			out = append(out, mention{candidate, mtype, conf, loc[0]})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].offset < out[j].offset })
	return out
}

func classifyProper(candidate string, offset int, text string) (string, float64) {
	words := strings.Fields(candidate)
	last := words[len(words)-1]
	for _, suffix := range orgSuffixes {
		if last == suffix {
			return "organization", 0.85
		}
	}
	if _, ok := knownLocations[candidate]; ok {
		return "location", 0.8
	}
	// Two or more capitalized words not at a sentence start read as a name.
	if len(words) >= 2 && !isSentenceStart(text, offset) {
		return "person", 0.6
	}
	return "", 0
}

func isSentenceStart(text string, offset int) bool {
	for i := offset - 1; i >= 0; i-- {
		c := text[i]
		if c == ' ' || c == '\n' || c == '\t' {
			continue
		}
		return c == '.' || c == '!' || c == '?'
	}
	return true
}

// inferRelationships links entities that co-occur within one sentence of a
// chunk. Confidence scales with how confidently both endpoints were
// recognized; the sentence itself becomes the source context.
func inferRelationships(chunk models.Chunk, mentions []mention, byCanonical map[string]*models.Entity) []models.Relationship {
	if len(mentions) < 2 {
		return nil
	}
	var out []models.Relationship
	for i := 0; i < len(mentions); i++ {
		for j := i + 1; j < len(mentions); j++ {
			a, b := mentions[i], mentions[j]
			if !sameSentence(chunk.Text, a.offset, b.offset) {
				continue
			}
			src, ok1 := byCanonical[CanonicalName(a.text)]
			dst, ok2 := byCanonical[CanonicalName(b.text)]
			if !ok1 || !ok2 || src.Canonical == dst.Canonical {
				continue
			}
			out = append(out, models.Relationship{
				Source:     src.Canonical,
				Target:     dst.Canonical,
				Type:       relationType(src.Type, dst.Type),
				Confidence: minF(src.Confidence, dst.Confidence) * 0.9,
				Context:    contextSnippet(chunk.Text, a.offset, b.offset),
				ChunkIndex: chunk.ChunkIndex,
			})
		}
	}
	return out
}

func relationType(a, b string) string {
	switch {
	case a == "person" && b == "organization", a == "organization" && b == "person":
		return "AFFILIATED_WITH"
	case a == "organization" && b == "location", a == "location" && b == "organization":
		return "BASED_IN"
	case a == "person" && b == "location", a == "location" && b == "person":
		return "LOCATED_IN"
	case b == "date":
		return "DATED"
	default:
		return "CO_OCCURS_WITH"
	}
}

func sameSentence(text string, a, b int) bool {
	if a > b {
		a, b = b, a
	}
	if b-a > 300 {
		return false
	}
	return !strings.ContainsAny(text[a:b], ".!?")
}

func contextSnippet(text string, a, b int) string {
	if a > b {
		a, b = b, a
	}
	start := a - 40
	if start < 0 {
		start = 0
	}
	end := b + 40
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(text[start:end], " "))
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// ExtractionConfidence averages entity confidence for the quality report and
// errors when there are no entities to score.
func ExtractionConfidence(entities []models.Entity) (float64, error) {
	if len(entities) == 0 {
		return 0, fault.New(fault.InvalidInput, "no entities to score")
	}
	total := 0.0
	for _, e := range entities {
		total += e.Confidence
	}
	return total / float64(len(entities)), nil
}
