//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/kanren/pkg/utils"
)

// ONNXOptions configures an ONNXEmbedder.
type ONNXOptions struct {
	ModelPath         string
	TokenizerPath     string // HuggingFace tokenizer.json; empty selects SimpleTokenizer
	SharedLibraryPath string
	Dimensions        int
	MaxTokens         int
	BatchSize         int
}

// ONNXEmbedder runs a sentence-transformer model through ONNX Runtime and mean-pools the last
// hidden state over the attention mask. It requires CGO and the onnxruntime shared library.
type ONNXEmbedder struct {
	session    *ort.DynamicAdvancedSession
	tokenizer  Tokenizer
	dimensions int
	maxTokens  int
	batchSize  int
	mu         sync.Mutex
}

// NewONNXEmbedder creates an ONNX embedder. InitializeEnvironment is called if not already done.
func NewONNXEmbedder(opts ONNXOptions) (*ONNXEmbedder, error) {
	if opts.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 256
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}

	var tok Tokenizer = &SimpleTokenizer{}
	if opts.TokenizerPath != "" {
		hf, err := NewHFTokenizer(opts.TokenizerPath)
		if err != nil {
			return nil, err
		}
		tok = hf
	}

	if !ort.IsInitialized() {
		if opts.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(opts.SharedLibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		opts.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXEmbedder{
		session:    session,
		tokenizer:  tok,
		dimensions: opts.Dimensions,
		maxTokens:  opts.MaxTokens,
		batchSize:  opts.BatchSize,
	}, nil
}

// Embed returns the embedding for text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch runs inference in chunks of BatchSize texts.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedChunk(texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", start/e.batchSize, err)
		}
		all = append(all, vecs...)
	}
	return all, nil
}

func (e *ONNXEmbedder) embedChunk(texts []string) ([][]float32, error) {
	n := len(texts)
	seq := e.maxTokens
	ids := make([]int64, n*seq)
	mask := make([]int64, n*seq)
	types := make([]int64, n*seq)
	for i, t := range texts {
		enc, err := e.tokenizer.Tokenize(t, seq)
		if err != nil {
			return nil, err
		}
		copy(ids[i*seq:(i+1)*seq], enc.InputIDs)
		copy(mask[i*seq:(i+1)*seq], enc.AttentionMask)
		copy(types[i*seq:(i+1)*seq], enc.TokenTypeIDs)
	}

	shape := ort.NewShape(int64(n), int64(seq))
	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()
	typesTensor, err := ort.NewTensor(shape, types)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	defer typesTensor.Destroy()

	e.mu.Lock()
	outputs := []ort.Value{nil}
	err = e.session.Run([]ort.Value{idsTensor, maskTensor, typesTensor}, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("output tensor is not float32")
	}
	outShape := hidden.GetShape()
	if len(outShape) != 3 || int(outShape[2]) != e.dimensions {
		return nil, fmt.Errorf("unexpected output shape %v for %d dimensions", outShape, e.dimensions)
	}
	return meanPool(hidden.GetData(), mask, n, int(outShape[1]), e.dimensions), nil
}

// meanPool averages token vectors where mask is set and normalizes each row.
func meanPool(hidden []float32, mask []int64, batch, seq, dim int) [][]float32 {
	out := make([][]float32, batch)
	for b := 0; b < batch; b++ {
		vec := make([]float32, dim)
		var count float32
		for s := 0; s < seq; s++ {
			if mask[b*seq+s] == 0 {
				continue
			}
			row := hidden[(b*seq+s)*dim : (b*seq+s+1)*dim]
			for d := range vec {
				vec[d] += row[d]
			}
			count++
		}
		if count > 0 {
			for d := range vec {
				vec[d] /= count
			}
		}
		utils.NormalizeL2(vec)
		out[b] = vec
	}
	return out
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}
