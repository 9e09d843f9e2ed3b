package embedding

import (
	"fmt"
	"strings"

	tokenizer "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Encoding is a padded BERT-style model input.
type Encoding struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
}

// Tokenizer produces fixed-length token IDs for BERT-style models.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (Encoding, error)
}

func newEncoding(maxTokens int) Encoding {
	return Encoding{
		InputIDs:      make([]int64, maxTokens),
		AttentionMask: make([]int64, maxTokens),
		TokenTypeIDs:  make([]int64, maxTokens),
	}
}

// HFTokenizer loads a HuggingFace tokenizer.json.
type HFTokenizer struct {
	tk *tokenizer.Tokenizer
}

// NewHFTokenizer loads the tokenizer at path.
func NewHFTokenizer(path string) (*HFTokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &HFTokenizer{tk: tk}, nil
}

// Tokenize encodes text with special tokens, truncated and zero-padded to maxTokens.
func (t *HFTokenizer) Tokenize(text string, maxTokens int) (Encoding, error) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	input := tokenizer.NewSingleEncodeInput(tokenizer.NewInputSequence(text))
	encs, err := t.tk.EncodeBatch([]tokenizer.EncodeInput{input}, true)
	if err != nil {
		return Encoding{}, fmt.Errorf("tokenize: %w", err)
	}
	out := newEncoding(maxTokens)
	if len(encs) == 0 {
		return out, nil
	}
	ids := encs[0].GetIds()
	mask := encs[0].GetAttentionMask()
	types := encs[0].GetTypeIds()
	for i := 0; i < len(ids) && i < maxTokens; i++ {
		out.InputIDs[i] = int64(ids[i])
		if i < len(mask) {
			out.AttentionMask[i] = int64(mask[i])
		}
		if i < len(types) {
			out.TokenTypeIDs[i] = int64(types[i])
		}
	}
	return out, nil
}

// SimpleTokenizer is a word-split tokenizer with hash-based token IDs (for testing or fallback).
type SimpleTokenizer struct{}

// Tokenize splits text into words and produces padded token IDs up to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (Encoding, error) {
	words := strings.Fields(text)
	if maxTokens <= 0 {
		maxTokens = 256
	}
	out := newEncoding(maxTokens)

	out.InputIDs[0] = 101 // [CLS]
	out.AttentionMask[0] = 1

	pos := 1
	for _, word := range words {
		if pos >= maxTokens-1 {
			break
		}
		out.InputIDs[pos] = int64(HashString(word) % 30000)
		out.AttentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		out.InputIDs[pos] = 102 // [SEP]
		out.AttentionMask[pos] = 1
	}
	return out, nil
}

// HashString returns a deterministic hash for use as a simple token ID.
func HashString(s string) int {
	var h uint32
	for _, c := range s {
		h = 31*h + uint32(c)
	}
	return int(h)
}
