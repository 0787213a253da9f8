package g2g

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Gradients holds parameter gradients in the same order as Encoder.Params
type Gradients []*mat.Dense

// ComputeLoss runs the encoder on the full attribute matrix and evaluates
// the energy-based ranking loss over the sampled triplet batch.
//
// For a triplet (i, j, k) with anchor i, closer neighbor j and farther
// neighbor k, the energy combines the squared KL divergence KL(N_i || N_j)
// with an exponentiated negative KL term between i and k. The apart term
// deliberately omits the log-ratio present in the closer term; the
// asymmetry matches the published energy formulation. The batch loss is the
// weight-scaled sum of energies divided by the samples drawn per anchor,
// an unbiased estimator of the loss over all (closer, farther) pairs.
func (e *Encoder) ComputeLoss(attributes mat.Matrix, batch *TripletBatch) (float64, error) {
	if err := e.checkBatch(attributes, batch); err != nil {
		return 0, err
	}

	cache := e.forward(attributes)
	loss, _, _ := e.batchEnergy(cache, batch, false)
	return loss, nil
}

// ComputeLossGradients evaluates the loss and its analytic gradients with
// respect to every encoder parameter.
func (e *Encoder) ComputeLossGradients(attributes mat.Matrix, batch *TripletBatch) (float64, Gradients, error) {
	if err := e.checkBatch(attributes, batch); err != nil {
		return 0, nil, err
	}

	cache := e.forward(attributes)
	loss, gMu, gSigma := e.batchEnergy(cache, batch, true)
	grads := e.backward(cache, gMu, gSigma)
	return loss, grads, nil
}

func (e *Encoder) checkBatch(attributes mat.Matrix, batch *TripletBatch) error {
	rows, cols := attributes.Dims()
	if cols != e.D {
		return fmt.Errorf("attribute matrix has %d columns, encoder expects %d", cols, e.D)
	}
	if len(batch.Closer) != batch.Len() || len(batch.Farther) != batch.Len() || len(batch.Weights) != batch.Len() {
		return fmt.Errorf("triplet batch arrays have mismatched lengths")
	}
	if batch.SamplesPerAnchor < 1 {
		return fmt.Errorf("samples per anchor must be >= 1, got %d", batch.SamplesPerAnchor)
	}
	for t := 0; t < batch.Len(); t++ {
		if batch.Anchors[t] < 0 || batch.Anchors[t] >= rows ||
			batch.Closer[t] < 0 || batch.Closer[t] >= rows ||
			batch.Farther[t] < 0 || batch.Farther[t] >= rows {
			return fmt.Errorf("triplet %d references a node outside the attribute matrix", t)
		}
	}
	return nil
}

// batchEnergy computes the batch loss and, when withGrad is set, the loss
// gradients with respect to every node's mu and sigma rows. Nodes recur
// across triplets, so gradient contributions accumulate per row.
func (e *Encoder) batchEnergy(cache *forwardCache, batch *TripletBatch, withGrad bool) (float64, *mat.Dense, *mat.Dense) {
	n, _ := cache.Mu.Dims()
	dim := float64(e.L)
	scale := 1.0 / float64(batch.SamplesPerAnchor)

	var gMu, gSigma *mat.Dense
	if withGrad {
		gMu = mat.NewDense(n, e.L, nil)
		gSigma = mat.NewDense(n, e.L, nil)
	}

	loss := 0.0
	for t := 0; t < batch.Len(); t++ {
		i, j, k := batch.Anchors[t], batch.Closer[t], batch.Farther[t]

		muI := cache.Mu.RawRowView(i)
		muJ := cache.Mu.RawRowView(j)
		muK := cache.Mu.RawRowView(k)
		sigmaI := cache.Sigma.RawRowView(i)
		sigmaJ := cache.Sigma.RawRowView(j)
		sigmaK := cache.Sigma.RawRowView(k)

		// closer = KL(N_i || N_j), apart = unnormalized -KL between i and k
		// without the log term, logProd = log sqrt(prod(sigma_k/sigma_i)).
		closer := 0.0
		apart := 0.0
		logProd := 0.0
		for l := 0; l < e.L; l++ {
			ratioJI := sigmaJ[l] / sigmaI[l]
			diffIJ := muI[l] - muJ[l]
			closer += ratioJI + diffIJ*diffIJ/sigmaI[l] - math.Log(ratioJI)

			ratioKI := sigmaK[l] / sigmaI[l]
			diffIK := muI[l] - muK[l]
			apart += ratioKI + diffIK*diffIK/sigmaI[l]
			logProd += 0.5 * math.Log(ratioKI)
		}
		closer = 0.5 * (closer - dim)
		apart = -0.5 * (apart - dim)

		repel := math.Exp(apart + logProd)
		energy := closer*closer + repel

		loss += batch.Weights[t] * energy * scale

		if !withGrad {
			continue
		}

		// dLoss/dEnergy for this triplet, then chain through both terms.
		dE := batch.Weights[t] * scale
		coefC := dE * 2 * closer
		coefR := dE * repel

		gMuI := gMu.RawRowView(i)
		gMuJ := gMu.RawRowView(j)
		gMuK := gMu.RawRowView(k)
		gSigmaI := gSigma.RawRowView(i)
		gSigmaJ := gSigma.RawRowView(j)
		gSigmaK := gSigma.RawRowView(k)

		for l := 0; l < e.L; l++ {
			si := sigmaI[l]
			sj := sigmaJ[l]
			sk := sigmaK[l]
			diffIJ := muI[l] - muJ[l]
			diffIK := muI[l] - muK[l]

			// closer term
			gMuI[l] += coefC * diffIJ / si
			gMuJ[l] -= coefC * diffIJ / si
			gSigmaI[l] += coefC * 0.5 * (1/si - sj/(si*si) - diffIJ*diffIJ/(si*si))
			gSigmaJ[l] += coefC * 0.5 * (1/si - 1/sj)

			// repel term: d/dx exp(apart + logProd)
			gMuI[l] += coefR * (-diffIK / si)
			gMuK[l] += coefR * (diffIK / si)
			gSigmaI[l] += coefR * (0.5*(sk/(si*si)+diffIK*diffIK/(si*si)) - 0.5/si)
			gSigmaK[l] += coefR * (-0.5/si + 0.5/sk)
		}
	}

	return loss, gMu, gSigma
}

// backward propagates per-node (mu, sigma) gradients through the network
// and returns parameter gradients in Params order.
func (e *Encoder) backward(cache *forwardCache, gMu, gSigma *mat.Dense) Gradients {
	n, _ := gMu.Dims()

	// Variance head: sigma = elu(zSigma) + 1
	dZSigma := mat.NewDense(n, e.L, nil)
	for r := 0; r < n; r++ {
		zRow := cache.ZSigma.RawRowView(r)
		gRow := gSigma.RawRowView(r)
		dRow := dZSigma.RawRowView(r)
		for c := 0; c < e.L; c++ {
			dRow[c] = gRow[c] * eluPlusOneDeriv(zRow[c])
		}
	}

	gWSigma := mat.NewDense(e.Hidden2, e.L, nil)
	gWSigma.Mul(cache.H2.T(), dZSigma)
	gBSigma := columnSums(dZSigma)

	gWMu := mat.NewDense(e.Hidden2, e.L, nil)
	gWMu.Mul(cache.H2.T(), gMu)
	gBMu := columnSums(gMu)

	// Into hidden layer 2
	dH2 := mat.NewDense(n, e.Hidden2, nil)
	dH2.Mul(gMu, e.WMu.T())
	tmp := mat.NewDense(n, e.Hidden2, nil)
	tmp.Mul(dZSigma, e.WSigma.T())
	dH2.Add(dH2, tmp)
	dZ2 := reluBackward(dH2, cache.Z2)

	gW2 := mat.NewDense(e.Hidden1, e.Hidden2, nil)
	gW2.Mul(cache.H1.T(), dZ2)
	gB2 := columnSums(dZ2)

	// Into hidden layer 1
	dH1 := mat.NewDense(n, e.Hidden1, nil)
	dH1.Mul(dZ2, e.W2.T())
	dZ1 := reluBackward(dH1, cache.Z1)

	gW1 := mat.NewDense(e.D, e.Hidden1, nil)
	gW1.Mul(cache.X.T(), dZ1)
	gB1 := columnSums(dZ1)

	return Gradients{gW1, gB1, gW2, gB2, gWMu, gBMu, gWSigma, gBSigma}
}

// reluBackward masks upstream gradients where the pre-activation was non-positive
func reluBackward(upstream, z *mat.Dense) *mat.Dense {
	rows, cols := upstream.Dims()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		uRow := upstream.RawRowView(r)
		zRow := z.RawRowView(r)
		oRow := out.RawRowView(r)
		for c := 0; c < cols; c++ {
			if zRow[c] > 0 {
				oRow[c] = uRow[c]
			}
		}
	}
	return out
}

// columnSums reduces a matrix to a 1 x cols row of column totals
func columnSums(m *mat.Dense) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(1, cols, nil)
	sums := out.RawRowView(0)
	for r := 0; r < rows; r++ {
		row := m.RawRowView(r)
		for c := 0; c < cols; c++ {
			sums[c] += row[c]
		}
	}
	return out
}
