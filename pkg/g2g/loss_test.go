package g2g

import (
	"math"
	"math/rand"
	"testing"
)

// testBatch builds a small deterministic triplet batch over n nodes
func testBatch(n, triplets int, seed int64) *TripletBatch {
	rng := rand.New(rand.NewSource(seed))
	batch := &TripletBatch{
		Anchors:          make([]int, triplets),
		Closer:           make([]int, triplets),
		Farther:          make([]int, triplets),
		Weights:          make([]float64, triplets),
		SamplesPerAnchor: 2,
	}
	for i := 0; i < triplets; i++ {
		batch.Anchors[i] = rng.Intn(n)
		batch.Closer[i] = rng.Intn(n)
		batch.Farther[i] = rng.Intn(n)
		batch.Weights[i] = 1 + rng.Float64()*5
	}
	return batch
}

func TestCloserEnergyZeroForIdenticalGaussians(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	encoder, err := NewEncoderWithHidden(5, 3, 8, 6, rng)
	if err != nil {
		t.Fatalf("NewEncoderWithHidden failed: %v", err)
	}

	attrs := randomAttributes(4, 5, 11)
	mu, sigma := encoder.Forward(attrs)

	// Anchor and closer refer to the same node, so KL(i||j) is exactly 0
	// and the whole energy reduces to the repel term.
	batch := &TripletBatch{
		Anchors:          []int{1},
		Closer:           []int{1},
		Farther:          []int{3},
		Weights:          []float64{1},
		SamplesPerAnchor: 1,
	}

	loss, err := encoder.ComputeLoss(attrs, batch)
	if err != nil {
		t.Fatalf("ComputeLoss failed: %v", err)
	}

	// Recompute the repel term by hand from the forward outputs.
	apart := 0.0
	logProd := 0.0
	for l := 0; l < 3; l++ {
		ratio := sigma.At(3, l) / sigma.At(1, l)
		diff := mu.At(1, l) - mu.At(3, l)
		apart += ratio + diff*diff/sigma.At(1, l)
		logProd += 0.5 * math.Log(ratio)
	}
	apart = -0.5 * (apart - 3)
	expected := math.Exp(apart + logProd)

	if math.Abs(loss-expected) > 1e-10 {
		t.Errorf("loss %.12f, expected pure repel term %.12f", loss, expected)
	}
}

func TestLossMatchesDirectFormula(t *testing.T) {
	rng := rand.New(rand.NewSource(20))
	encoder, err := NewEncoderWithHidden(6, 4, 10, 8, rng)
	if err != nil {
		t.Fatalf("NewEncoderWithHidden failed: %v", err)
	}

	attrs := randomAttributes(9, 6, 21)
	batch := testBatch(9, 12, 22)

	loss, err := encoder.ComputeLoss(attrs, batch)
	if err != nil {
		t.Fatalf("ComputeLoss failed: %v", err)
	}

	mu, sigma := encoder.Forward(attrs)
	dim := 4

	expected := 0.0
	for s := 0; s < batch.Len(); s++ {
		i, j, k := batch.Anchors[s], batch.Closer[s], batch.Farther[s]

		closer := 0.0
		apart := 0.0
		prod := 1.0
		for l := 0; l < dim; l++ {
			ratioJI := sigma.At(j, l) / sigma.At(i, l)
			diffIJ := mu.At(i, l) - mu.At(j, l)
			closer += ratioJI + diffIJ*diffIJ/sigma.At(i, l) - math.Log(ratioJI)

			ratioKI := sigma.At(k, l) / sigma.At(i, l)
			diffIK := mu.At(i, l) - mu.At(k, l)
			apart += ratioKI + diffIK*diffIK/sigma.At(i, l)
			prod *= ratioKI
		}
		closer = 0.5 * (closer - float64(dim))
		apart = -0.5 * (apart - float64(dim))

		energy := closer*closer + math.Exp(apart)*math.Sqrt(prod)
		expected += batch.Weights[s] * energy / float64(batch.SamplesPerAnchor)
	}

	if math.Abs(loss-expected) > 1e-9*math.Max(1, math.Abs(expected)) {
		t.Errorf("loss %.12f, direct formula gives %.12f", loss, expected)
	}
}

func TestLossGradientsNumeric(t *testing.T) {
	rng := rand.New(rand.NewSource(30))
	encoder, err := NewEncoderWithHidden(3, 2, 5, 4, rng)
	if err != nil {
		t.Fatalf("NewEncoderWithHidden failed: %v", err)
	}

	attrs := randomAttributes(6, 3, 31)
	batch := testBatch(6, 8, 32)

	_, grads, err := encoder.ComputeLossGradients(attrs, batch)
	if err != nil {
		t.Fatalf("ComputeLossGradients failed: %v", err)
	}

	params := encoder.Params()
	epsilon := 1e-6

	for p, param := range params {
		rows, cols := param.Dims()
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				original := param.At(r, c)

				param.Set(r, c, original+epsilon)
				lossPlus, err := encoder.ComputeLoss(attrs, batch)
				if err != nil {
					t.Fatalf("ComputeLoss failed: %v", err)
				}

				param.Set(r, c, original-epsilon)
				lossMinus, err := encoder.ComputeLoss(attrs, batch)
				if err != nil {
					t.Fatalf("ComputeLoss failed: %v", err)
				}

				param.Set(r, c, original)

				numeric := (lossPlus - lossMinus) / (2 * epsilon)
				analytic := grads[p].At(r, c)

				tolerance := 1e-4 * math.Max(1, math.Abs(numeric))
				if math.Abs(numeric-analytic) > tolerance {
					t.Fatalf("param %d[%d][%d]: analytic gradient %.8f, numeric %.8f",
						p, r, c, analytic, numeric)
				}
			}
		}
	}
}

func TestLossRejectsInvalidBatch(t *testing.T) {
	rng := rand.New(rand.NewSource(40))
	encoder, err := NewEncoderWithHidden(3, 2, 4, 4, rng)
	if err != nil {
		t.Fatalf("NewEncoderWithHidden failed: %v", err)
	}

	attrs := randomAttributes(5, 3, 41)

	outOfRange := &TripletBatch{
		Anchors:          []int{0},
		Closer:           []int{9},
		Farther:          []int{1},
		Weights:          []float64{1},
		SamplesPerAnchor: 1,
	}
	if _, err := encoder.ComputeLoss(attrs, outOfRange); err == nil {
		t.Error("expected error for out-of-range node index")
	}

	badSamples := &TripletBatch{
		Anchors:          []int{0},
		Closer:           []int{1},
		Farther:          []int{2},
		Weights:          []float64{1},
		SamplesPerAnchor: 0,
	}
	if _, err := encoder.ComputeLoss(attrs, badSamples); err == nil {
		t.Error("expected error for zero samples per anchor")
	}
}
