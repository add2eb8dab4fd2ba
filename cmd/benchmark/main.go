package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/delaneyj/cellgraph/cellgraph"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	itersKey   = "iters"
	maxSizeKey = "max"
	profileKey = "pgo"
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure write to notification latency on W chains of H computations",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  itersKey,
				Usage: "Writes per graph",
				Value: 100,
			},
			&cli.IntFlag{
				Name:  maxSizeKey,
				Usage: "Largest width and height to try",
				Value: 1_000,
			},
			&cli.BoolFlag{
				Name:  profileKey,
				Usage: "Write a CPU profile to default.pgo",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

var sizes = []int{1, 10, 100, 1_000}

func addOne(v int) (int, error) {
	return v + 1, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool(profileKey) {
		f, err := os.Create("default.pgo")
		if err != nil {
			return err
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	iters := int(cmd.Int(itersKey))
	limit := int(cmd.Int(maxSizeKey))

	log.Printf("warming up")
	if err := benchmarkPropagate(iters, limit, false); err != nil {
		return err
	}
	return benchmarkPropagate(iters, limit, true)
}

func benchmarkPropagate(iters, limit int, shouldRender bool) error {
	tbl := table.NewWriter()
	tbl.SetTitle("cellgraph")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max", "evals"})

	for _, w := range sizes {
		if w > limit {
			continue
		}
		for _, h := range sizes {
			if h > limit {
				continue
			}
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			e := cellgraph.New(cellgraph.WithName(fmt.Sprintf("propagate-%dx%d", w, h)))
			src := cellgraph.NewCell(e, 1)
			notified := 0
			for i := 0; i < w; i++ {
				var last cellgraph.Reader[int] = src
				for j := 0; j < h; j++ {
					last = cellgraph.Derive1(e, last, addOne)
				}

				leaf := last
				g, err := e.Declare(cellgraph.ComputedEntry("leaf", func(g *cellgraph.Group) (int, error) {
					return leaf.Get(), nil
				}))
				if err != nil {
					return err
				}
				if _, err := g.Observe(func(changed []string) {
					notified++
				}); err != nil {
					return err
				}
			}

			before := e.Stats().Evaluations
			for i := 0; i < iters; i++ {
				start := time.Now()
				if err := src.Set(src.Peek() + 1); err != nil {
					return err
				}
				tach.AddTime(time.Since(start))
			}
			if notified != w*iters {
				return fmt.Errorf("propagate %dx%d: %d notifications, want %d", w, h, notified, w*iters)
			}

			calc := tach.Calc()
			tbl.AppendRows([]table.Row{
				{
					fmt.Sprintf("propagate: %d * %d", w, h),
					calc.Time.Avg,
					calc.Time.Min,
					calc.Time.P75,
					calc.Time.P99,
					calc.Time.Max,
					e.Stats().Evaluations - before,
				},
			})
		}
	}

	if shouldRender {
		tbl.Render()
	}
	return nil
}
