//go:build onnx

package adapter

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEmbedder runs a local sentence-transformer model (all-MiniLM-L6-v2)
// through ONNX Runtime so embeddings work without any API access. Built
// only with the `onnx` tag because it needs the onnxruntime shared
// library at runtime.
type ONNXEmbedder struct {
	session    *ort.DynamicAdvancedSession
	tokenizer  *wordPieceTokenizer
	dimensions int
	maxLen     int
}

// ONNXConfig configures the local embedder.
type ONNXConfig struct {
	// ModelPath is the path to the ONNX model file
	ModelPath string
	// TokenizerPath is the path to the HuggingFace tokenizer.json
	TokenizerPath string
	// LibraryPath is the path to libonnxruntime.so
	LibraryPath string
	// Dimensions of the output embedding (default 384)
	Dimensions int
}

// NewONNXEmbedder loads the model and tokenizer.
func NewONNXEmbedder(cfg ONNXConfig) (Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, goerr.New("model path is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, goerr.Wrap(err, "failed to initialize onnx runtime")
	}

	tokenizer, err := loadWordPieceTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create onnx session", goerr.V("model", cfg.ModelPath))
	}

	return &ONNXEmbedder{
		session:    session,
		tokenizer:  tokenizer,
		dimensions: cfg.Dimensions,
		maxLen:     128,
	}, nil
}

func (e *ONNXEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	ids := e.tokenizer.tokenize(text)

	inputIDs := make([]int64, e.maxLen)
	attentionMask := make([]int64, e.maxLen)
	tokenTypeIDs := make([]int64, e.maxLen)

	inputIDs[0] = int64(e.tokenizer.clsID)
	attentionMask[0] = 1

	n := len(ids)
	if n > e.maxLen-2 {
		n = e.maxLen - 2
	}
	for i := 0; i < n; i++ {
		inputIDs[i+1] = ids[i]
		attentionMask[i+1] = 1
	}
	inputIDs[n+1] = int64(e.tokenizer.sepID)
	attentionMask[n+1] = 1

	shape := ort.NewShape(1, int64(e.maxLen))
	tensors := make([]ort.Value, 0, 3)
	for _, data := range [][]int64{inputIDs, attentionMask, tokenTypeIDs} {
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create input tensor")
		}
		defer t.Destroy()
		tensors = append(tensors, t)
	}

	outputs := []ort.Value{nil}
	if err := e.session.Run(tensors, outputs); err != nil {
		return nil, goerr.Wrap(err, "onnx inference failed")
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, goerr.New("unexpected output tensor type")
	}

	return e.meanPool(tensor, attentionMask)
}

// meanPool averages last_hidden_state over attended tokens and normalizes
// the result, matching sentence-transformers pooling.
func (e *ONNXEmbedder) meanPool(tensor *ort.Tensor[float32], attentionMask []int64) ([]float32, error) {
	data := tensor.GetData()
	shape := tensor.GetShape()
	if len(shape) != 3 || shape[0] != 1 || shape[2] != int64(e.dimensions) {
		return nil, goerr.New("unexpected output shape", goerr.V("shape", shape))
	}

	seqLen := int(shape[1])
	hidden := e.dimensions
	vec := make([]float32, hidden)
	var attended float32
	for i := 0; i < seqLen; i++ {
		if attentionMask[i] == 0 {
			continue
		}
		attended++
		offset := i * hidden
		for j := 0; j < hidden; j++ {
			vec[j] += data[offset+j]
		}
	}
	if attended == 0 {
		return nil, goerr.New("no attended tokens")
	}

	var norm float64
	for j := range vec {
		vec[j] /= attended
		norm += float64(vec[j]) * float64(vec[j])
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for j := range vec {
			vec[j] /= n
		}
	}
	return vec, nil
}

func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close releases the ONNX session.
func (e *ONNXEmbedder) Close() error {
	if e.session != nil {
		e.session.Destroy()
	}
	return nil
}

// wordPieceTokenizer is a minimal BERT WordPiece tokenizer, enough for
// MiniLM-style models with a HuggingFace tokenizer.json vocabulary.
type wordPieceTokenizer struct {
	vocab map[string]int64
	clsID int
	sepID int
	unkID int64
}

func loadWordPieceTokenizer(path string) (*wordPieceTokenizer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read tokenizer", goerr.V("path", path))
	}

	var parsed struct {
		Model struct {
			Vocab map[string]int64 `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse tokenizer", goerr.V("path", path))
	}
	if len(parsed.Model.Vocab) == 0 {
		return nil, goerr.New("tokenizer has no vocabulary", goerr.V("path", path))
	}

	t := &wordPieceTokenizer{vocab: parsed.Model.Vocab}
	t.clsID = int(t.vocab["[CLS]"])
	t.sepID = int(t.vocab["[SEP]"])
	t.unkID = t.vocab["[UNK]"]
	return t, nil
}

func (t *wordPieceTokenizer) tokenize(text string) []int64 {
	var ids []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]")
		if word == "" {
			continue
		}
		ids = append(ids, t.wordPiece(word)...)
	}
	return ids
}

// wordPiece greedily splits a word into the longest known vocabulary
// pieces, falling back to [UNK] when nothing matches.
func (t *wordPieceTokenizer) wordPiece(word string) []int64 {
	var ids []int64
	start := 0
	for start < len(word) {
		end := len(word)
		var match int64 = -1
		for end > start {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				match = id
				break
			}
			end--
		}
		if match < 0 {
			return []int64{t.unkID}
		}
		ids = append(ids, match)
		start = end
	}
	return ids
}
