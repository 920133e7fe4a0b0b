package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/reviewpipe"
	"github.com/poiesic/reviewpipe/config"
	"github.com/poiesic/reviewpipe/core"
)

var reviews = []string{
	"Llegó en perfecto estado y funciona de maravilla.",
	"La batería dura muchísimo, estoy encantada.",
	"El envío tardó tres semanas y la caja venía rota.",
	"No es lo que esperaba, la tela es muy fina.",
	"Cumple su función, sin más.",
	"Buena calidad pero el precio es algo elevado.",
	"Lo devolví al día siguiente, no enciende.",
	"Perfecto para regalar, a mi hermano le encantó.",
	"El tamaño es correcto aunque el color no coincide con la foto.",
	"Ni fu ni fa, hace lo que dice y poco más.",
	"Excelente atención del vendedor, resolvió todo en un día.",
	"Se rompió a la semana de uso normal.",
	"Muy cómodo, lo uso todos los días.",
	"Las instrucciones están solo en inglés y son confusas.",
	"Relación calidad precio inmejorable.",
	"El sonido es bueno pero se desconecta cada dos por tres.",
	"Tal y como se describe en el anuncio.",
	"Huele fatal a plástico, imposible usarlo dentro de casa.",
	"Me gusta el diseño, aunque pesa más de lo que pensaba.",
	"Producto correcto, entrega rápida.",
}

var (
	configFile = flag.String("config", "", "path to YAML configuration file")
	srcFile    = flag.String("src", "", "file of seed reviews, one per line")
	bucket     = flag.String("bucket", "raw", "destination bucket")
	key        = flag.String("key", "reviews.json", "destination object key")
	format     = flag.String("format", "json", "artifact format (json, ndjson)")
	assignIDs  = flag.Bool("ids", false, "assign positional ids before uploading")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// linesFromFile returns an iterator over non-blank lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// buildBatch turns review texts into records carrying a review_body and a
// star rating cycling from 1 to 5.
func buildBatch(source iter.Seq[string], withIDs bool) core.Batch {
	batch := core.Batch{}
	for text := range source {
		stars := len(batch)%5 + 1
		batch = append(batch, core.RecordOf(core.FieldReviewBody, text, "stars", stars))
	}
	if withIDs {
		core.AssignIDs(batch)
	}
	return batch
}

func seed(ctx context.Context, cfg *config.Config, source iter.Seq[string]) (int, error) {
	f, err := core.ParseFormat(*format)
	if err != nil {
		return 0, err
	}
	data, err := core.EncodeBatch(buildBatch(source, *assignIDs), f)
	if err != nil {
		return 0, err
	}

	sys, err := reviewpipe.Open(ctx, cfg)
	if err != nil {
		return 0, err
	}
	defer sys.Close()

	if err := sys.BlobStore().Put(ctx, *bucket, *key, data); err != nil {
		return 0, fmt.Errorf("put %s/%s: %w", *bucket, *key, err)
	}
	return len(data), nil
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(err)
	}
	// Seeding never classifies.
	cfg.Classifier.Backend = "none"

	// Determine source of seed data
	var source iter.Seq[string]
	if *srcFile != "" {
		source, err = linesFromFile(*srcFile)
		if err != nil {
			panic(err)
		}
	} else {
		source = linesFromSlice(reviews)
	}

	n, err := seed(context.Background(), cfg, source)
	if err != nil {
		panic(err)
	}
	slog.Info("seeded batch", "bucket", *bucket, "key", *key, "bytes", n)
}
