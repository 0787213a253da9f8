package eval

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ProbeResult holds node classification probe scores
type ProbeResult struct {
	MacroF1  float64 `json:"macro_f1"`
	Accuracy float64 `json:"accuracy"`
}

// NodeClassification evaluates embeddings with a multinomial logistic
// regression probe: stratified train/test split on the labels, gradient
// descent training on the train rows, macro-F1 and accuracy on the rest.
func NodeClassification(embeddings *mat.Dense, labels []int, trainRatio float64, rng *rand.Rand) (*ProbeResult, error) {
	numRows, _ := embeddings.Dims()
	if len(labels) != numRows {
		return nil, fmt.Errorf("have %d labels for %d embedding rows", len(labels), numRows)
	}
	if trainRatio <= 0 || trainRatio >= 1 {
		return nil, fmt.Errorf("train ratio must be in (0, 1), got %f", trainRatio)
	}

	numClasses := 0
	for _, label := range labels {
		if label < 0 {
			return nil, fmt.Errorf("labels must be non-negative, got %d", label)
		}
		if label+1 > numClasses {
			numClasses = label + 1
		}
	}
	if numClasses < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", numClasses)
	}

	trainIdx, testIdx := stratifiedSplit(labels, numClasses, trainRatio, rng)
	if len(trainIdx) == 0 || len(testIdx) == 0 {
		return nil, fmt.Errorf("split produced an empty train or test set")
	}

	model := fitLogistic(embeddings, labels, trainIdx, numClasses)

	correct := 0
	confusion := make([][]int, numClasses)
	for c := range confusion {
		confusion[c] = make([]int, numClasses)
	}

	for _, row := range testIdx {
		predicted := model.predict(embeddings.RawRowView(row))
		actual := labels[row]
		confusion[actual][predicted]++
		if predicted == actual {
			correct++
		}
	}

	return &ProbeResult{
		MacroF1:  macroF1(confusion),
		Accuracy: float64(correct) / float64(len(testIdx)),
	}, nil
}

// stratifiedSplit shuffles each class independently and takes trainRatio of
// it for training, so class proportions carry over to both sides.
func stratifiedSplit(labels []int, numClasses int, trainRatio float64, rng *rand.Rand) (train, test []int) {
	byClass := make([][]int, numClasses)
	for row, label := range labels {
		byClass[label] = append(byClass[label], row)
	}

	for _, rows := range byClass {
		rng.Shuffle(len(rows), func(a, b int) {
			rows[a], rows[b] = rows[b], rows[a]
		})

		split := int(float64(len(rows)) * trainRatio)
		if split == 0 && len(rows) > 1 {
			split = 1
		}
		train = append(train, rows[:split]...)
		test = append(test, rows[split:]...)
	}

	return train, test
}

// logisticModel is a multinomial (softmax) regression classifier
type logisticModel struct {
	weights *mat.Dense // dim x classes
	bias    []float64
}

const (
	logisticEpochs       = 200
	logisticLearningRate = 0.1
	logisticL2           = 1e-4
)

func fitLogistic(embeddings *mat.Dense, labels, trainIdx []int, numClasses int) *logisticModel {
	_, dim := embeddings.Dims()
	model := &logisticModel{
		weights: mat.NewDense(dim, numClasses, nil),
		bias:    make([]float64, numClasses),
	}

	probs := make([]float64, numClasses)
	scale := 1.0 / float64(len(trainIdx))

	gradW := mat.NewDense(dim, numClasses, nil)
	gradB := make([]float64, numClasses)

	for epoch := 0; epoch < logisticEpochs; epoch++ {
		gradW.Zero()
		for c := range gradB {
			gradB[c] = 0
		}

		for _, row := range trainIdx {
			x := embeddings.RawRowView(row)
			model.softmax(x, probs)

			for c := 0; c < numClasses; c++ {
				delta := probs[c]
				if c == labels[row] {
					delta -= 1
				}

				gradB[c] += delta * scale
				for d := 0; d < dim; d++ {
					gradW.Set(d, c, gradW.At(d, c)+delta*x[d]*scale)
				}
			}
		}

		for d := 0; d < dim; d++ {
			for c := 0; c < numClasses; c++ {
				w := model.weights.At(d, c)
				g := gradW.At(d, c) + logisticL2*w
				model.weights.Set(d, c, w-logisticLearningRate*g)
			}
		}
		for c := 0; c < numClasses; c++ {
			model.bias[c] -= logisticLearningRate * gradB[c]
		}
	}

	return model
}

// softmax fills probs with class probabilities for one embedding row
func (m *logisticModel) softmax(x []float64, probs []float64) {
	numClasses := len(probs)

	maxScore := math.Inf(-1)
	for c := 0; c < numClasses; c++ {
		score := m.bias[c]
		for d, v := range x {
			score += v * m.weights.At(d, c)
		}
		probs[c] = score
		if score > maxScore {
			maxScore = score
		}
	}

	sum := 0.0
	for c := range probs {
		probs[c] = math.Exp(probs[c] - maxScore)
		sum += probs[c]
	}
	for c := range probs {
		probs[c] /= sum
	}
}

func (m *logisticModel) predict(x []float64) int {
	probs := make([]float64, len(m.bias))
	m.softmax(x, probs)

	best := 0
	for c := 1; c < len(probs); c++ {
		if probs[c] > probs[best] {
			best = c
		}
	}
	return best
}

// macroF1 averages per-class F1 scores from a confusion matrix. Classes
// absent from the test set contribute zero, matching the convention of
// treating undefined precision/recall as zero.
func macroF1(confusion [][]int) float64 {
	numClasses := len(confusion)
	total := 0.0

	for c := 0; c < numClasses; c++ {
		truePos := confusion[c][c]
		falseNeg := 0
		falsePos := 0
		for other := 0; other < numClasses; other++ {
			if other == c {
				continue
			}
			falseNeg += confusion[c][other]
			falsePos += confusion[other][c]
		}

		if truePos == 0 {
			continue
		}

		precision := float64(truePos) / float64(truePos+falsePos)
		recall := float64(truePos) / float64(truePos+falseNeg)
		total += 2 * precision * recall / (precision + recall)
	}

	return total / float64(numClasses)
}
