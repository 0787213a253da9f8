package g2g

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Encoder maps node attribute vectors to diagonal Gaussian embeddings. Two
// ReLU hidden layers feed a mean head and a variance head; the variance is
// parameterized as elu(raw)+1 so it stays strictly positive with smooth
// gradients everywhere.
type Encoder struct {
	D int // attribute dimensionality
	L int // embedding dimensionality

	Hidden1 int
	Hidden2 int

	W1     *mat.Dense // D x Hidden1
	B1     *mat.Dense // 1 x Hidden1
	W2     *mat.Dense // Hidden1 x Hidden2
	B2     *mat.Dense // 1 x Hidden2
	WMu    *mat.Dense // Hidden2 x L
	BMu    *mat.Dense // 1 x L
	WSigma *mat.Dense // Hidden2 x L
	BSigma *mat.Dense // 1 x L
}

// DefaultHidden1 and DefaultHidden2 are the hidden layer widths used by NewEncoder
const (
	DefaultHidden1 = 256
	DefaultHidden2 = 128
)

// NewEncoder constructs an encoder with the default hidden layer widths
func NewEncoder(attrDim, embedDim int, rng *rand.Rand) (*Encoder, error) {
	return NewEncoderWithHidden(attrDim, embedDim, DefaultHidden1, DefaultHidden2, rng)
}

// NewEncoderWithHidden constructs an encoder with explicit hidden widths.
// Weights get xavier-normal initialization, biases start at zero.
func NewEncoderWithHidden(attrDim, embedDim, hidden1, hidden2 int, rng *rand.Rand) (*Encoder, error) {
	if attrDim < 1 || embedDim < 1 || hidden1 < 1 || hidden2 < 1 {
		return nil, fmt.Errorf("invalid encoder dimensions: D=%d, L=%d, hidden=(%d, %d)", attrDim, embedDim, hidden1, hidden2)
	}

	return &Encoder{
		D:       attrDim,
		L:       embedDim,
		Hidden1: hidden1,
		Hidden2: hidden2,
		W1:      xavierNormal(attrDim, hidden1, rng),
		B1:      mat.NewDense(1, hidden1, nil),
		W2:      xavierNormal(hidden1, hidden2, rng),
		B2:      mat.NewDense(1, hidden2, nil),
		WMu:     xavierNormal(hidden2, embedDim, rng),
		BMu:     mat.NewDense(1, embedDim, nil),
		WSigma:  xavierNormal(hidden2, embedDim, rng),
		BSigma:  mat.NewDense(1, embedDim, nil),
	}, nil
}

// xavierNormal draws a rows x cols weight matrix from N(0, 2/(fanIn+fanOut)).
// A nil rng leaves the weights zeroed for callers that overwrite them.
func xavierNormal(rows, cols int, rng *rand.Rand) *mat.Dense {
	if rng == nil {
		return mat.NewDense(rows, cols, nil)
	}
	std := math.Sqrt(2.0 / float64(rows+cols))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64() * std
	}
	return mat.NewDense(rows, cols, data)
}

// Params returns the encoder parameters in a fixed order, matching the
// gradient order produced by ComputeLossGradients.
func (e *Encoder) Params() []*mat.Dense {
	return []*mat.Dense{e.W1, e.B1, e.W2, e.B2, e.WMu, e.BMu, e.WSigma, e.BSigma}
}

// forwardCache keeps the intermediate activations needed for the backward pass
type forwardCache struct {
	X      mat.Matrix
	Z1     *mat.Dense // pre-activation of hidden 1
	H1     *mat.Dense
	Z2     *mat.Dense
	H2     *mat.Dense
	Mu     *mat.Dense
	ZSigma *mat.Dense // pre-activation of the variance head
	Sigma  *mat.Dense
}

// Forward maps attribute rows to per-node Gaussian parameters (mu, sigma)
func (e *Encoder) Forward(attributes mat.Matrix) (*mat.Dense, *mat.Dense) {
	cache := e.forward(attributes)
	return cache.Mu, cache.Sigma
}

func (e *Encoder) forward(attributes mat.Matrix) *forwardCache {
	cache := &forwardCache{X: attributes}

	cache.Z1 = affine(attributes, e.W1, e.B1)
	cache.H1 = applyReLU(cache.Z1)
	cache.Z2 = affine(cache.H1, e.W2, e.B2)
	cache.H2 = applyReLU(cache.Z2)
	cache.Mu = affine(cache.H2, e.WMu, e.BMu)
	cache.ZSigma = affine(cache.H2, e.WSigma, e.BSigma)
	cache.Sigma = applyELUPlusOne(cache.ZSigma)

	return cache
}

// affine computes X*W + b with b broadcast over rows
func affine(x mat.Matrix, w, b *mat.Dense) *mat.Dense {
	rows, _ := x.Dims()
	_, cols := w.Dims()

	out := mat.NewDense(rows, cols, nil)
	out.Mul(x, w)

	bias := b.RawRowView(0)
	for r := 0; r < rows; r++ {
		row := out.RawRowView(r)
		for c := range row {
			row[c] += bias[c]
		}
	}
	return out
}

func applyReLU(z *mat.Dense) *mat.Dense {
	rows, cols := z.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, _ int, v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	}, z)
	return out
}

// applyELUPlusOne computes elu(z)+1, which is exp(z) for z <= 0 and z+1
// for z > 0. Strictly positive for all inputs.
func applyELUPlusOne(z *mat.Dense) *mat.Dense {
	rows, cols := z.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, _ int, v float64) float64 {
		if v > 0 {
			return v + 1
		}
		return math.Exp(v)
	}, z)
	return out
}

// eluPlusOneDeriv is the derivative of elu(z)+1 with respect to z
func eluPlusOneDeriv(z float64) float64 {
	if z > 0 {
		return 1
	}
	return math.Exp(z)
}
