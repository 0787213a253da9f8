package g2g

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

func TestSampleBatch(t *testing.T) {
	g := pathGraph(t, 5)
	ag, err := NewAttributedGraph(g, randomAttributes(5, 4, 21), nil, 0)
	if err != nil {
		t.Fatalf("NewAttributedGraph failed: %v", err)
	}

	samplesPerAnchor := 3
	rng := rand.New(rand.NewSource(8))
	batch := SampleBatch(ag, samplesPerAnchor, rng)

	eligible := ag.EligibleNodes()
	if batch.Len() != len(eligible)*samplesPerAnchor {
		t.Fatalf("expected %d triplets, got %d", len(eligible)*samplesPerAnchor, batch.Len())
	}
	if batch.SamplesPerAnchor != samplesPerAnchor {
		t.Errorf("expected samples per anchor %d, got %d", samplesPerAnchor, batch.SamplesPerAnchor)
	}

	for index, node := range eligible {
		for s := 0; s < samplesPerAnchor; s++ {
			row := index*samplesPerAnchor + s
			if batch.Anchors[row] != node {
				t.Fatalf("row %d: expected anchor %d, got %d", row, node, batch.Anchors[row])
			}
			if batch.Weights[row] != ag.LossWeights[node] {
				t.Fatalf("row %d: expected weight %f, got %f", row, ag.LossWeights[node], batch.Weights[row])
			}
			if batch.Closer[row] == node || batch.Farther[row] == node {
				t.Fatalf("row %d: anchor %d sampled itself", row, node)
			}
		}
	}
}

func TestTripletGeneratorProducesAllBatches(t *testing.T) {
	g := pathGraph(t, 6)
	ag, err := NewAttributedGraph(g, randomAttributes(6, 4, 22), nil, 0)
	if err != nil {
		t.Fatalf("NewAttributedGraph failed: %v", err)
	}

	numWorkers := 2
	iterations := 3
	gen, err := NewTripletGenerator(ag, 2, numWorkers, iterations, 1234)
	if err != nil {
		t.Fatalf("NewTripletGenerator failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	gen.Start(ctx)

	count := 0
	for batch := range gen.Batches() {
		if batch.Len() == 0 {
			t.Error("received empty batch")
		}
		count++
	}

	if count != numWorkers*iterations {
		t.Errorf("expected %d batches, got %d", numWorkers*iterations, count)
	}
}

func TestTripletGeneratorValidation(t *testing.T) {
	g := pathGraph(t, 5)
	ag, err := NewAttributedGraph(g, randomAttributes(5, 4, 23), nil, 0)
	if err != nil {
		t.Fatalf("NewAttributedGraph failed: %v", err)
	}

	cases := []struct {
		name                          string
		samples, workers, iterations  int
	}{
		{name: "ZeroSamples", samples: 0, workers: 1, iterations: 1},
		{name: "ZeroWorkers", samples: 1, workers: 0, iterations: 1},
		{name: "ZeroIterations", samples: 1, workers: 1, iterations: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTripletGenerator(ag, tc.samples, tc.workers, tc.iterations, 1); err == nil {
				t.Error("expected construction error")
			}
		})
	}
}

func TestTripletGeneratorCancellation(t *testing.T) {
	g := pathGraph(t, 6)
	ag, err := NewAttributedGraph(g, randomAttributes(6, 4, 24), nil, 0)
	if err != nil {
		t.Fatalf("NewAttributedGraph failed: %v", err)
	}

	gen, err := NewTripletGenerator(ag, 2, 1, 1000, 99)
	if err != nil {
		t.Fatalf("NewTripletGenerator failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	gen.Start(ctx)

	// Take one batch, then cancel; the channel must close.
	<-gen.Batches()
	cancel()

	done := make(chan struct{})
	go func() {
		for range gen.Batches() {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("batch channel did not close after cancellation")
	}
}
