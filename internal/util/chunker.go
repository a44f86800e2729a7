package util

import "strings"

// ChunkText splits text into chunks of at most chunkSize runes, preferring
// paragraph and sentence boundaries over hard cuts. Adjacent chunks overlap
// by roughly overlap runes of trailing context so that statements spanning a
// boundary stay recoverable from either side. The carried context counts
// against the chunk budget, so chunkSize is a hard ceiling; when the next
// unit of text leaves no room for the context, the context is dropped.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 1200
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	paras := SplitParagraphs(text)
	if len(paras) == 0 {
		return nil
	}

	out := make([]string, 0, 8)
	var cur strings.Builder
	// seedLen runes at the front of cur are overlap carried from the previous
	// chunk. The buffer is only worth emitting once it holds more than the seed,
	// and the seed counts against the chunk budget like any other content.
	curLen := 0
	seedLen := 0
	dropSeed := func() {
		if curLen == seedLen {
			cur.Reset()
			curLen = 0
			seedLen = 0
		}
	}
	flush := func() {
		if curLen <= seedLen {
			return
		}
		part := strings.TrimSpace(cur.String())
		if part != "" {
			out = append(out, part)
		}
		cur.Reset()
		curLen = 0
		seedLen = 0
		if overlap > 0 && len(out) > 0 {
			tail := tailRunes(out[len(out)-1], overlap)
			if tail != "" {
				cur.WriteString(tail)
				cur.WriteString("\n")
				curLen = len([]rune(tail)) + 1
				seedLen = curLen
			}
		}
	}

	for _, p := range paras {
		plen := len([]rune(p))
		if plen > chunkSize {
			// Paragraph alone exceeds the band; fall back to sentence packing.
			for _, s := range splitSentences(p) {
				slen := len([]rune(s))
				if slen > chunkSize {
					flush()
					dropSeed()
					// Oversized sentences get fixed windows; the window stride
					// already bakes in the overlap, so no seed is carried.
					for _, piece := range hardSplit(s, chunkSize, overlap) {
						cur.WriteString(piece)
						curLen = len([]rune(piece))
						flush()
						dropSeed()
					}
					continue
				}
				if curLen > 0 && curLen+slen+1 > chunkSize {
					flush()
					// When even the seed leaves no room, the sentence wins.
					if curLen+slen+1 > chunkSize {
						dropSeed()
					}
				}
				if curLen > 0 {
					cur.WriteString(" ")
					curLen++
				}
				cur.WriteString(s)
				curLen += slen
			}
			continue
		}
		if curLen > 0 && curLen+plen+2 > chunkSize {
			flush()
			if curLen+plen+2 > chunkSize {
				dropSeed()
			}
		}
		if curLen > 0 {
			cur.WriteString("\n\n")
			curLen += 2
		}
		cur.WriteString(p)
		curLen += plen
	}
	if curLen > seedLen {
		if part := strings.TrimSpace(cur.String()); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SplitParagraphs splits on blank lines and trims each paragraph.
func SplitParagraphs(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitSentences(text string) []string {
	out := make([]string, 0, 8)
	var cur strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
				s := strings.TrimSpace(cur.String())
				if s != "" {
					out = append(out, s)
				}
				cur.Reset()
			}
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func hardSplit(text string, size, overlap int) []string {
	step := size - overlap
	if step <= 0 {
		step = size
	}
	runes := []rune(text)
	out := make([]string, 0, len(runes)/step+1)
	for i := 0; i < len(runes); i += step {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		part := strings.TrimSpace(string(runes[i:end]))
		if part != "" {
			out = append(out, part)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	tail := string(runes[len(runes)-n:])
	// Start the overlap at a word boundary when one exists.
	if idx := strings.IndexAny(tail, " \n"); idx >= 0 && idx+1 < len(tail) {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}
