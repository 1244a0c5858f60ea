// Command hamlsh builds an LSH index over a binary dataset and runs sample
// queries against it, comparing the answers with a brute-force scan.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/hamlsh"
	"github.com/hupe1980/hamlsh/bitvec"
	"github.com/hupe1980/hamlsh/dataset"
	"github.com/hupe1980/hamlsh/testutil"
)

var (
	size        = flag.Int("n", 512, "dataset size (ignored with -data)")
	dim         = flag.Int("d", 32, "bits per generated vector")
	radius      = flag.Float64("r", 2, "allowed distance r")
	margin      = flag.Float64("margin", 0.5, "relative margin: r2 = r * (1 + margin)")
	hashBits    = flag.Int("bits", 16, "hash bits per band used to derive the dimension")
	replicas    = flag.Int("replicas", 1, "number of independent stores")
	seed        = flag.Int64("seed", 4711, "random seed")
	dataFile    = flag.String("data", "", "read the dataset from this file instead of generating it")
	genFile     = flag.String("gen", "", "write the generated dataset to this file")
	compression = flag.String("compression", "zstd", "compression for -gen: none, lz4 or zstd")
	queries     = flag.Int("queries", 5, "number of queries")
	k           = flag.Int("k", 3, "neighbours per query")
	verbose     = flag.Bool("v", false, "debug logging")
)

func main() {
	flag.Parse()

	if err := run(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	rng := testutil.NewRNG(*seed)

	data, err := loadData(rng)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}

	idx, err := hamlsh.New(len(data), *radius, *margin,
		hamlsh.WithHashBits(*hashBits),
		hamlsh.WithReplicas(*replicas),
		hamlsh.WithRand(rng),
		hamlsh.WithLogger(hamlsh.NewTextLogger(level)),
	)
	if err != nil {
		return err
	}

	fmt.Println(idx)
	fmt.Println()

	fmt.Println("--- Fit ---")
	fmt.Println("Size:", len(data))

	start := time.Now()
	if err := idx.Fit(ctx, data); err != nil {
		return err
	}
	end := time.Since(start)

	st := idx.Stats()
	fmt.Printf("Stored: %d Dropped: %d MaxOccupancy: %d\n", st.Stored, st.Dropped, st.MaxOccupancy)
	fmt.Printf("Seconds: %.4f\n\n", end.Seconds())

	fmt.Println("--- KNN ---")

	var recall float64
	for i := 0; i < *queries; i++ {
		// Query near a stored point so there is something to find.
		q := rng.Perturb(data[rng.Intn(len(data))], int(*radius))

		start = time.Now()
		result, err := idx.KNeighbours(ctx, q, *k)
		if err != nil {
			return err
		}
		end = time.Since(start)

		exact := testutil.ExactTopK(q, data, *k)
		r := testutil.ComputeRecall(exact, result)
		recall += r

		fmt.Printf("Query %s (%.6fs, recall %.2f)\n", q, end.Seconds(), r)
		printResult(result)
	}

	if *queries > 0 {
		fmt.Printf("\nMean recall@%d: %.2f\n", *k, recall/float64(*queries))
	}

	return nil
}

func loadData(rng *testutil.RNG) ([]bitvec.Vector, error) {
	if *dataFile != "" {
		return dataset.ReadFile(*dataFile)
	}

	data := rng.BinaryVectors(*size, *dim)

	if *genFile != "" {
		c, err := dataset.ParseCompression(*compression)
		if err != nil {
			return nil, err
		}
		if err := dataset.WriteFile(*genFile, data, c); err != nil {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "wrote %d vectors to %s\n", len(data), *genFile)
	}

	return data, nil
}

func printResult(result []hamlsh.SearchResult) {
	for _, r := range result {
		fmt.Printf("  ID: %4d Distance: %2d Vector: %s\n", r.ID, r.Distance, r.Vector)
	}
}
