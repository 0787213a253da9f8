package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/gilchrisn/graph-embedding-service/pkg/eval"
	"github.com/gilchrisn/graph-embedding-service/pkg/g2g"
	"github.com/gilchrisn/graph-embedding-service/pkg/parser"
)

func main() {
	epochs := flag.Int("epochs", 10, "number of training iterations")
	samples := flag.Int("samples", 3, "triplet samples per anchor node")
	learningRate := flag.Float64("lr", 1e-3, "Adam learning rate")
	seed := flag.Int64("seed", 0, "random seed (0 = time-based)")
	workers := flag.Int("workers", 4, "sampling workers")
	maxHops := flag.Int("k", 1, "maximum depth to consider in level sets (0 = unlimited)")
	embeddingDim := flag.Int("dim", 64, "embedding dimensionality")
	labelPath := flag.String("labels", "", "optional label file for the classification probe")
	checkpointPath := flag.String("checkpoint", "", "write the trained encoder to this file")
	outputPath := flag.String("output", "embeddings.json", "write learned embeddings to this file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: g2g [flags] <edgelist_file> <attribute_file>")
		fmt.Fprintln(os.Stderr, "Example: g2g -epochs 100 -k 2 graph.edgelist attributes.txt")
		flag.PrintDefaults()
		os.Exit(1)
	}

	config := g2g.NewConfig()
	config.Set("training.epochs", *epochs)
	config.Set("training.samples_per_anchor", *samples)
	config.Set("training.learning_rate", *learningRate)
	config.Set("neighborhood.max_hops", *maxHops)
	config.Set("encoder.embedding_dim", *embeddingDim)
	config.Set("performance.num_workers", *workers)
	config.Set("logging.level", *logLevel)
	if *seed != 0 {
		config.Set("training.random_seed", *seed)
	}

	logger := config.CreateLogger()

	dataset, err := parser.LoadDataset(flag.Arg(0), flag.Arg(1), *labelPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load dataset")
	}

	_, attrDim := dataset.Attributes.Dims()
	logger.Info().
		Int("num_nodes", dataset.Graph.NumNodes).
		Int("num_edges", dataset.Graph.NumEdges).
		Int("attr_dim", attrDim).
		Msg("Dataset loaded")

	graph, err := g2g.NewAttributedGraph(dataset.Graph, dataset.Attributes, dataset.Labels, *maxHops)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build attributed graph")
	}

	opts := g2g.TrainOptions{}
	if dataset.Labels != nil {
		opts.Eval = func(iteration int, encoder *g2g.Encoder) {
			mu, _ := encoder.Forward(dataset.Attributes)
			probeRng := rand.New(rand.NewSource(config.RandomSeed()))
			probe, err := eval.NodeClassification(mu, dataset.Labels, 0.1, probeRng)
			if err != nil {
				logger.Warn().Err(err).Msg("Classification probe failed")
				return
			}
			logger.Info().
				Int("iteration", iteration).
				Float64("macro_f1", probe.MacroF1).
				Float64("accuracy", probe.Accuracy).
				Msg("Node classification probe")
		}
	}

	encoder, result, err := g2g.Train(context.Background(), graph, config, logger, opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("Training failed")
	}

	if err := g2g.WriteEmbeddings(*outputPath, encoder, dataset.Attributes); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write embeddings")
	}
	logger.Info().Str("path", *outputPath).Msg("Embeddings written")

	if *checkpointPath != "" {
		if err := g2g.SaveCheckpoint(*checkpointPath, encoder); err != nil {
			logger.Fatal().Err(err).Msg("Failed to write checkpoint")
		}
		logger.Info().Str("path", *checkpointPath).Msg("Checkpoint written")
	}

	logger.Info().
		Float64("final_loss", result.FinalLoss).
		Int("iterations", result.Iterations).
		Int64("runtime_ms", result.Statistics.RuntimeMS).
		Msg("Done")
}
