//go:build !onnx

package adapter

import (
	"github.com/m-mizutani/goerr/v2"
)

// ONNXConfig configures the local embedder. Only meaningful when the
// binary is built with the `onnx` tag.
type ONNXConfig struct {
	ModelPath     string
	TokenizerPath string
	LibraryPath   string
	Dimensions    int
}

// NewONNXEmbedder is unavailable without the `onnx` build tag.
func NewONNXEmbedder(_ ONNXConfig) (Embedder, error) {
	return nil, goerr.New("built without onnx support, rebuild with -tags onnx")
}
