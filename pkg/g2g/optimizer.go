package g2g

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam implements the Adam optimizer with bias-corrected first and second
// moment estimates over the encoder's parameter matrices.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	step int
	m    []*mat.Dense
	v    []*mat.Dense
}

// NewAdam creates an optimizer for the given parameter set
func NewAdam(params []*mat.Dense, learningRate float64) *Adam {
	a := &Adam{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		m:            make([]*mat.Dense, len(params)),
		v:            make([]*mat.Dense, len(params)),
	}

	for i, p := range params {
		rows, cols := p.Dims()
		a.m[i] = mat.NewDense(rows, cols, nil)
		a.v[i] = mat.NewDense(rows, cols, nil)
	}

	return a
}

// Step applies one in-place Adam update to the parameters
func (a *Adam) Step(params []*mat.Dense, grads Gradients) error {
	if len(params) != len(a.m) || len(grads) != len(a.m) {
		return fmt.Errorf("parameter/gradient count mismatch: have %d moments, got %d params and %d grads",
			len(a.m), len(params), len(grads))
	}

	a.step++
	correction1 := 1 - math.Pow(a.Beta1, float64(a.step))
	correction2 := 1 - math.Pow(a.Beta2, float64(a.step))

	for i, p := range params {
		rows, cols := p.Dims()
		gRows, gCols := grads[i].Dims()
		if rows != gRows || cols != gCols {
			return fmt.Errorf("gradient %d has shape (%d, %d), parameter has (%d, %d)", i, gRows, gCols, rows, cols)
		}

		for r := 0; r < rows; r++ {
			pRow := p.RawRowView(r)
			gRow := grads[i].RawRowView(r)
			mRow := a.m[i].RawRowView(r)
			vRow := a.v[i].RawRowView(r)

			for c := 0; c < cols; c++ {
				g := gRow[c]
				mRow[c] = a.Beta1*mRow[c] + (1-a.Beta1)*g
				vRow[c] = a.Beta2*vRow[c] + (1-a.Beta2)*g*g

				mHat := mRow[c] / correction1
				vHat := vRow[c] / correction2
				pRow[c] -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Epsilon)
			}
		}
	}

	return nil
}
