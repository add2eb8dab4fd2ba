package main

import (
	"context"
	"fmt"
	"go/format"
	"log"
	"os"
	"time"

	"github.com/delaneyj/cellgraph/cmd/codegen/templates"
	"github.com/urfave/cli/v3"
)

const (
	readerCountKey = "count"
	outputKey      = "out"
)

func main() {
	cmd := &cli.Command{
		Name:  "generate",
		Usage: "Generate the typed Derive helpers for cellgraph",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  readerCountKey,
				Usage: "Highest number of readers a Derive helper takes",
				Value: 4,
			},
			&cli.StringFlag{
				Name:  outputKey,
				Usage: "File to write",
				Value: "cellgraph/derive_gen.go",
			},
		},
		Action: generate,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func generate(ctx context.Context, cmd *cli.Command) error {
	start := time.Now()
	log.Printf("Codegen for cellgraph started !")
	defer func() {
		log.Printf("Codegen for cellgraph finished in %v", time.Since(start))
	}()

	count := int(cmd.Uint(readerCountKey))
	if count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", count)
	}
	out := cmd.String(outputKey)
	log.Printf("Derive1..Derive%d -> %s", count, out)

	src, err := format.Source([]byte(templates.DeriveGen(count)))
	if err != nil {
		return fmt.Errorf("formatting generated code: %w", err)
	}
	return os.WriteFile(out, src, 0644)
}
