package g2g

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
)

// TripletBatch carries everything one training step needs: for every
// eligible anchor node, SamplesPerAnchor sampled (closer, farther) pairs
// plus the anchor's precomputed loss weight.
type TripletBatch struct {
	Anchors          []int
	Closer           []int
	Farther          []int
	Weights          []float64
	SamplesPerAnchor int
}

// Len returns the number of triplets in the batch
func (b *TripletBatch) Len() int {
	return len(b.Anchors)
}

// TripletGenerator produces triplet batches on background workers. Sampling
// is the dominant per-step cost and is independent of gradient computation,
// so workers pre-sample batches and hand them over a bounded channel.
//
// Each worker owns an explicitly seeded random generator derived from the
// base seed and the worker identity, so runs are reproducible and workers
// are not correlated. The attributed graph is shared read-only.
type TripletGenerator struct {
	graph            *AttributedGraph
	samplesPerAnchor int
	numWorkers       int
	iterations       int // batches produced per worker
	seed             int64

	batches chan *TripletBatch
	wg      sync.WaitGroup
	started bool
}

// NewTripletGenerator creates a generator producing iterations batches on
// each of numWorkers workers.
func NewTripletGenerator(graph *AttributedGraph, samplesPerAnchor, numWorkers, iterations int, seed int64) (*TripletGenerator, error) {
	if samplesPerAnchor < 1 {
		return nil, fmt.Errorf("samples per anchor must be >= 1, got %d", samplesPerAnchor)
	}
	if numWorkers < 1 {
		return nil, fmt.Errorf("number of workers must be >= 1, got %d", numWorkers)
	}
	if iterations < 1 {
		return nil, fmt.Errorf("iterations must be >= 1, got %d", iterations)
	}

	return &TripletGenerator{
		graph:            graph,
		samplesPerAnchor: samplesPerAnchor,
		numWorkers:       numWorkers,
		iterations:       iterations,
		seed:             seed,
		batches:          make(chan *TripletBatch, numWorkers),
	}, nil
}

// Start launches the sampling workers. The batch channel is closed once all
// workers have produced their share or the context is cancelled.
func (tg *TripletGenerator) Start(ctx context.Context) {
	if tg.started {
		return
	}
	tg.started = true

	for w := 0; w < tg.numWorkers; w++ {
		tg.wg.Add(1)
		go tg.worker(ctx, w)
	}

	go func() {
		tg.wg.Wait()
		close(tg.batches)
	}()
}

// Batches returns the channel of pre-sampled triplet batches
func (tg *TripletGenerator) Batches() <-chan *TripletBatch {
	return tg.batches
}

func (tg *TripletGenerator) worker(ctx context.Context, id int) {
	defer tg.wg.Done()

	rng := rand.New(rand.NewSource(tg.seed + int64(id)))

	for iter := 0; iter < tg.iterations; iter++ {
		batch := SampleBatch(tg.graph, tg.samplesPerAnchor, rng)

		select {
		case tg.batches <- batch:
		case <-ctx.Done():
			return
		}
	}
}

// SampleBatch draws one full triplet batch covering every eligible node.
// Nodes with insufficient neighborhood depth are filtered up front via
// EligibleNodes, so sampling cannot fail here.
func SampleBatch(graph *AttributedGraph, samplesPerAnchor int, rng *rand.Rand) *TripletBatch {
	eligible := graph.EligibleNodes()
	rows := len(eligible) * samplesPerAnchor

	batch := &TripletBatch{
		Anchors:          make([]int, rows),
		Closer:           make([]int, rows),
		Farther:          make([]int, rows),
		Weights:          make([]float64, rows),
		SamplesPerAnchor: samplesPerAnchor,
	}

	for index, node := range eligible {
		start := index * samplesPerAnchor

		closer, farther, err := graph.SampleTwoNeighbors(node, samplesPerAnchor, rng)
		if err != nil {
			// Unreachable: eligible nodes always have a sampler.
			panic(err)
		}

		for s := 0; s < samplesPerAnchor; s++ {
			batch.Anchors[start+s] = node
			batch.Closer[start+s] = closer[s]
			batch.Farther[start+s] = farther[s]
			batch.Weights[start+s] = graph.LossWeights[node]
		}
	}

	return batch
}
