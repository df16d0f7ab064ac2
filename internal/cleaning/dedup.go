package cleaning

import (
	"strings"
	"unicode"

	"github.com/duke-git/lancet/v2/cryptor"

	"github.com/glensun810-ai/geodiag/pkg/utils"
)

// Deduper flags repeated response texts within one execution. Duplicates
// are flagged, never dropped: the record still counts toward completeness,
// the aggregator just knows the model parroted itself.
//
// Two modes run side by side: an exact match on the normalized text, and a
// cheaper chunked mode that hashes fixed-size windows and flags a text when
// most of its chunks were already seen in earlier responses.
//
// Not safe for concurrent use; the aggregator goroutine owns it.
type Deduper struct {
	seen       map[string]struct{}
	chunks     map[string]struct{}
	chunkRunes int
	threshold  float64
}

// NewDeduper creates an empty per-execution deduper. A zero ChunkRunes in
// opts disables the near-duplicate mode.
func NewDeduper(opts Options) *Deduper {
	return &Deduper{
		seen:       make(map[string]struct{}),
		chunks:     make(map[string]struct{}),
		chunkRunes: opts.NearDup.ChunkRunes,
		threshold:  opts.NearDup.Threshold,
	}
}

// Check returns the content hash of text, whether an equivalent text was
// already seen, and whether it is a near-duplicate of earlier responses.
// Equivalence ignores case and whitespace, so trivial reformatting of the
// same answer still counts as a duplicate.
func (d *Deduper) Check(text string) (hash string, exact, near bool) {
	hash = cryptor.Sha256(text)
	norm := normalizeForDedup(text)
	normHash := utils.SHA256(norm)

	_, exact = d.seen[normHash]
	if !exact {
		d.seen[normHash] = struct{}{}
		near = d.nearDuplicate(norm)
	}
	return hash, exact, near
}

// nearDuplicate hashes fixed-size rune windows of the normalized text and
// reports whether the share already present from earlier responses reaches
// the threshold. A text's own chunks are registered only after the lookup,
// so internal repetition never flags the first occurrence.
func (d *Deduper) nearDuplicate(norm string) bool {
	if d.chunkRunes <= 0 {
		return false
	}
	runes := []rune(norm)
	if len(runes) < d.chunkRunes {
		return false
	}

	hashes := make([]string, 0, len(runes)/d.chunkRunes)
	for i := 0; i+d.chunkRunes <= len(runes); i += d.chunkRunes {
		hashes = append(hashes, utils.SHA256(string(runes[i:i+d.chunkRunes])))
	}

	known := 0
	for _, h := range hashes {
		if _, ok := d.chunks[h]; ok {
			known++
		}
	}
	for _, h := range hashes {
		d.chunks[h] = struct{}{}
	}
	return float64(known)/float64(len(hashes)) >= d.threshold
}

func normalizeForDedup(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
