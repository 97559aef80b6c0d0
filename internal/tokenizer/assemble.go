package tokenizer

import "github.com/example/go-textsim/internal/vocab"

// DefaultMaxLen is the maximum number of ids kept per text, sentinels included.
const DefaultMaxLen = 128

// Encoding is the single-text stage of assembly: wrapped, converted and
// truncated, before cross-text padding.
type Encoding struct {
	Tokens []string
	IDs    []int64
	Mask   []int64
}

// Len returns the number of ids.
func (e Encoding) Len() int { return len(e.IDs) }

// Pair holds the model inputs for two texts. All sequences share one length.
type Pair struct {
	IDsA       []int64
	MaskA      []int64
	IDsB       []int64
	MaskB      []int64
	SegmentIDs []int64
}

// Len returns the common sequence length.
func (p Pair) Len() int { return len(p.IDsA) }

// Assembler builds padded id/mask pairs. It holds no per-call state and is
// safe for concurrent use.
type Assembler struct {
	wp     *WordPiece
	maxLen int
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithMaxLen overrides DefaultMaxLen. Values below 1 are ignored.
func WithMaxLen(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.maxLen = n
		}
	}
}

// NewAssembler returns an Assembler over v.
func NewAssembler(v *vocab.Vocabulary, opts ...AssemblerOption) *Assembler {
	a := &Assembler{wp: NewWordPiece(v), maxLen: DefaultMaxLen}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// MaxLen returns the truncation bound.
func (a *Assembler) MaxLen() int { return a.maxLen }

// Vocabulary returns the vocabulary ids are drawn from.
func (a *Assembler) Vocabulary() *vocab.Vocabulary { return a.wp.vocab }

// Encode tokenizes text, wraps it in [CLS] ... [SEP], converts to ids and
// drops trailing ids beyond MaxLen. Sentinels are not protected: a truncated
// sequence may lose its [SEP].
func (a *Assembler) Encode(text string) Encoding {
	tokens := a.wp.wrap(a.wp.Tokenize(text))
	ids := a.wp.ConvertToIDs(tokens)

	if len(ids) > a.maxLen {
		ids = ids[:a.maxLen]
		tokens = tokens[:a.maxLen]
	}

	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}

	return Encoding{Tokens: tokens, IDs: ids, Mask: mask}
}

// Assemble encodes both texts and right-pads them to the longer of the two
// with the padding id and a zero mask. Segment ids are all zero because each
// text is scored by its own model call.
func (a *Assembler) Assemble(textA, textB string) Pair {
	encA := a.Encode(textA)
	encB := a.Encode(textB)

	target := max(encA.Len(), encB.Len())
	pad := a.wp.vocab.PaddingID()

	return Pair{
		IDsA:       padTo(encA.IDs, target, pad),
		MaskA:      padTo(encA.Mask, target, 0),
		IDsB:       padTo(encB.IDs, target, pad),
		MaskB:      padTo(encB.Mask, target, 0),
		SegmentIDs: make([]int64, target),
	}
}

func padTo(seq []int64, n int, value int64) []int64 {
	out := make([]int64, n)
	copy(out, seq)

	for i := len(seq); i < n; i++ {
		out[i] = value
	}

	return out
}
