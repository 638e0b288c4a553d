//go:build !onnx

package cli

import (
	"testing"

	"github.com/m-mizutani/gt"
)

// A configured model path must select the local ONNX embedder. In a
// build without the onnx tag that construction fails; silently falling
// back to another embedder would change every stored vector.
func TestNewEmbedderSelectsONNX(t *testing.T) {
	cfg := config{embeddingDims: 384, onnxModel: "/models/all-MiniLM-L6-v2.onnx"}
	_, err := cfg.newEmbedder(nil)
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("onnx")
}
