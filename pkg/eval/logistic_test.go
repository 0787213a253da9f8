package eval

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// blobDataset builds two well-separated Gaussian clusters in 2D
func blobDataset(perClass int, seed int64) (*mat.Dense, []int) {
	rng := rand.New(rand.NewSource(seed))
	n := 2 * perClass
	embeddings := mat.NewDense(n, 2, nil)
	labels := make([]int, n)

	centers := [][2]float64{{-3, -3}, {3, 3}}
	for i := 0; i < n; i++ {
		class := i / perClass
		labels[i] = class
		embeddings.Set(i, 0, centers[class][0]+rng.NormFloat64()*0.5)
		embeddings.Set(i, 1, centers[class][1]+rng.NormFloat64()*0.5)
	}
	return embeddings, labels
}

func TestNodeClassificationSeparableClasses(t *testing.T) {
	embeddings, labels := blobDataset(50, 1)
	rng := rand.New(rand.NewSource(2))

	result, err := NodeClassification(embeddings, labels, 0.3, rng)
	if err != nil {
		t.Fatalf("NodeClassification failed: %v", err)
	}

	if result.Accuracy < 0.95 {
		t.Errorf("accuracy %.3f on separable blobs, expected >= 0.95", result.Accuracy)
	}
	if result.MacroF1 < 0.95 {
		t.Errorf("macro-F1 %.3f on separable blobs, expected >= 0.95", result.MacroF1)
	}
}

func TestNodeClassificationValidation(t *testing.T) {
	embeddings, labels := blobDataset(5, 3)
	rng := rand.New(rand.NewSource(4))

	cases := []struct {
		name       string
		labels     []int
		trainRatio float64
	}{
		{name: "LabelCountMismatch", labels: labels[:3], trainRatio: 0.5},
		{name: "NegativeLabel", labels: append([]int{-1}, labels[1:]...), trainRatio: 0.5},
		{name: "SingleClass", labels: make([]int, len(labels)), trainRatio: 0.5},
		{name: "RatioTooLow", labels: labels, trainRatio: 0},
		{name: "RatioTooHigh", labels: labels, trainRatio: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NodeClassification(embeddings, tc.labels, tc.trainRatio, rng); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestStratifiedSplitKeepsProportions(t *testing.T) {
	labels := make([]int, 100)
	for i := 60; i < 100; i++ {
		labels[i] = 1
	}
	rng := rand.New(rand.NewSource(5))

	train, test := stratifiedSplit(labels, 2, 0.5, rng)

	if len(train)+len(test) != 100 {
		t.Fatalf("split lost rows: %d train + %d test", len(train), len(test))
	}

	trainClassOne := 0
	for _, row := range train {
		if labels[row] == 1 {
			trainClassOne++
		}
	}
	if trainClassOne != 20 {
		t.Errorf("train set has %d class-1 rows, expected 20", trainClassOne)
	}

	seen := make(map[int]bool, 100)
	for _, row := range append(append([]int{}, train...), test...) {
		if seen[row] {
			t.Fatalf("row %d appears in both splits", row)
		}
		seen[row] = true
	}
}

func TestMacroF1PerfectPredictions(t *testing.T) {
	confusion := [][]int{
		{10, 0},
		{0, 15},
	}
	if f1 := macroF1(confusion); f1 != 1.0 {
		t.Errorf("macro-F1 %.3f for perfect confusion matrix, expected 1.0", f1)
	}
}
