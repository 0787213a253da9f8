package g2g

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

// EmbeddingOutput is the serialized form of the learned embeddings
type EmbeddingOutput struct {
	NumNodes int         `json:"num_nodes"`
	Dim      int         `json:"dim"`
	Mu       [][]float64 `json:"mu"`
	Sigma    [][]float64 `json:"sigma"`
}

// checkpoint is the serialized form of the encoder parameters
type checkpoint struct {
	D       int                    `json:"d"`
	L       int                    `json:"l"`
	Hidden1 int                    `json:"hidden1"`
	Hidden2 int                    `json:"hidden2"`
	Params  map[string][][]float64 `json:"params"`
}

var checkpointParamNames = []string{"w1", "b1", "w2", "b2", "w_mu", "b_mu", "w_sigma", "b_sigma"}

// WriteEmbeddings runs the encoder on the attribute matrix and writes the
// resulting Gaussian parameters to a JSON file.
func WriteEmbeddings(path string, encoder *Encoder, attributes mat.Matrix) error {
	mu, sigma := encoder.Forward(attributes)
	n, dim := mu.Dims()

	output := EmbeddingOutput{
		NumNodes: n,
		Dim:      dim,
		Mu:       denseToRows(mu),
		Sigma:    denseToRows(sigma),
	}

	return writeJSONFile(path, output)
}

// SaveCheckpoint writes the encoder parameters to a JSON file
func SaveCheckpoint(path string, encoder *Encoder) error {
	ckpt := checkpoint{
		D:       encoder.D,
		L:       encoder.L,
		Hidden1: encoder.Hidden1,
		Hidden2: encoder.Hidden2,
		Params:  make(map[string][][]float64, len(checkpointParamNames)),
	}

	for i, p := range encoder.Params() {
		ckpt.Params[checkpointParamNames[i]] = denseToRows(p)
	}

	return writeJSONFile(path, ckpt)
}

// LoadCheckpoint restores an encoder from a checkpoint file
func LoadCheckpoint(path string) (*Encoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var ckpt checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}

	encoder, err := NewEncoderWithHidden(ckpt.D, ckpt.L, ckpt.Hidden1, ckpt.Hidden2, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid checkpoint dimensions: %w", err)
	}

	for i, p := range encoder.Params() {
		name := checkpointParamNames[i]
		rowsData, exists := ckpt.Params[name]
		if !exists {
			return nil, fmt.Errorf("checkpoint missing parameter %q", name)
		}

		rows, cols := p.Dims()
		if len(rowsData) != rows {
			return nil, fmt.Errorf("parameter %q has %d rows, expected %d", name, len(rowsData), rows)
		}
		for r, row := range rowsData {
			if len(row) != cols {
				return nil, fmt.Errorf("parameter %q row %d has %d columns, expected %d", name, r, len(row), cols)
			}
			for c, v := range row {
				p.Set(r, c, v)
			}
		}
	}

	return encoder, nil
}

func denseToRows(m *mat.Dense) [][]float64 {
	rows, cols := m.Dims()
	out := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		out[r] = make([]float64, cols)
		copy(out[r], m.RawRowView(r))
	}
	return out
}

func writeJSONFile(path string, value interface{}) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
