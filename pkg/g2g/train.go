package g2g

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// ProgressCallback reports training progress to the caller
type ProgressCallback func(iteration int, loss float64)

// EvalCallback lets callers run periodic evaluation (e.g. a classification
// probe) on the encoder during training
type EvalCallback func(iteration int, encoder *Encoder)

// Result represents the training output
type Result struct {
	FinalLoss  float64    `json:"final_loss"`
	Iterations int        `json:"iterations"`
	Statistics Statistics `json:"statistics"`
}

// Statistics contains training performance metrics
type Statistics struct {
	RuntimeMS     int64     `json:"runtime_ms"`
	EligibleNodes int       `json:"eligible_nodes"`
	TripletsTotal int       `json:"triplets_total"`
	LossHistory   []float64 `json:"loss_history"`
}

// TrainOptions carries optional hooks for the training loop
type TrainOptions struct {
	Progress ProgressCallback
	Eval     EvalCallback
}

// Train fits an encoder to the attributed graph with Adam on the
// energy-based ranking loss. Sampling runs on background workers seeded
// from the configured base seed; the training loop consumes pre-sampled
// triplet batches from a bounded channel.
func Train(ctx context.Context, graph *AttributedGraph, config *Config, logger zerolog.Logger, opts TrainOptions) (*Encoder, *Result, error) {
	if graph.Attributes == nil {
		return nil, nil, fmt.Errorf("attributed graph has no attribute matrix")
	}
	if len(graph.EligibleNodes()) == 0 {
		return nil, nil, fmt.Errorf("graph has no eligible nodes: every node needs at least two neighbor shells")
	}

	_, attrDim := graph.Attributes.Dims()
	seed := config.RandomSeed()

	initRng := rand.New(rand.NewSource(seed))
	encoder, err := NewEncoderWithHidden(attrDim, config.EmbeddingDim(), config.Hidden1(), config.Hidden2(), initRng)
	if err != nil {
		return nil, nil, fmt.Errorf("building encoder: %w", err)
	}

	numWorkers := config.NumWorkers()
	iterations := config.Epochs() / numWorkers
	if iterations < 1 {
		iterations = 1
	}

	// Worker seeds are offset by 1 so no worker shares the init generator's seed.
	generator, err := NewTripletGenerator(graph, config.SamplesPerAnchor(), numWorkers, iterations, seed+1)
	if err != nil {
		return nil, nil, fmt.Errorf("building triplet generator: %w", err)
	}

	optimizer := NewAdam(encoder.Params(), config.LearningRate())

	logger.Info().
		Int("eligible_nodes", len(graph.EligibleNodes())).
		Int("samples_per_anchor", config.SamplesPerAnchor()).
		Int("workers", numWorkers).
		Int("iterations_per_worker", iterations).
		Float64("learning_rate", config.LearningRate()).
		Msg("Starting training")

	startTime := time.Now()
	generator.Start(ctx)

	result := &Result{
		Statistics: Statistics{EligibleNodes: len(graph.EligibleNodes())},
	}

	iteration := 0
	for batch := range generator.Batches() {
		if ctx.Err() != nil {
			break
		}

		loss, grads, err := encoder.ComputeLossGradients(graph.Attributes, batch)
		if err != nil {
			return nil, nil, fmt.Errorf("iteration %d: %w", iteration, err)
		}
		if err := optimizer.Step(encoder.Params(), grads); err != nil {
			return nil, nil, fmt.Errorf("iteration %d: %w", iteration, err)
		}

		iteration++
		result.FinalLoss = loss
		result.Statistics.TripletsTotal += batch.Len()
		result.Statistics.LossHistory = append(result.Statistics.LossHistory, loss)

		if interval := config.ProgressInterval(); interval > 0 && iteration%interval == 0 {
			logger.Info().
				Int("iteration", iteration).
				Float64("loss", loss).
				Msg("Training progress")
		}
		if opts.Progress != nil {
			opts.Progress(iteration, loss)
		}
		if opts.Eval != nil {
			if interval := config.EvalInterval(); interval > 0 && iteration%interval == 1 {
				opts.Eval(iteration, encoder)
			}
		}
	}

	result.Iterations = iteration
	result.Statistics.RuntimeMS = time.Since(startTime).Milliseconds()

	logger.Info().
		Int("iterations", iteration).
		Float64("final_loss", result.FinalLoss).
		Int64("runtime_ms", result.Statistics.RuntimeMS).
		Msg("Training complete")

	return encoder, result, nil
}
