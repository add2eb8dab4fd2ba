package cellgraph_test

import (
	"errors"
	"testing"

	"github.com/delaneyj/cellgraph/cellgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeclarationOrder(t *testing.T) {
	e := newEngine(t)

	g, err := e.Declare(
		cellgraph.CellEntry("a", 1),
		cellgraph.InitEntry("b", func(g *cellgraph.Group) (int, error) {
			return cellgraph.Read[int](g, "a") * 2, nil
		}),
		cellgraph.ComputedEntry("c", func(g *cellgraph.Group) (int, error) {
			return cellgraph.Read[int](g, "a") * 2, nil
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, g.Names())

	a, err := cellgraph.CellOf[int](g, "a")
	require.NoError(t, err)
	b, err := cellgraph.CellOf[int](g, "b")
	require.NoError(t, err)
	c, err := cellgraph.ComputationOf[int](g, "c")
	require.NoError(t, err)

	assert.Equal(t, 2, b.Peek())
	assert.Equal(t, cellgraph.CacheClean, c.State(), "computed entries evaluate at declaration")
	assert.Equal(t, 2, c.Peek())

	require.NoError(t, a.Set(5))
	assert.Equal(t, 2, b.Peek(), "initializers run once")
	assert.Equal(t, 10, c.Peek())
}

func TestDeclareErrors(t *testing.T) {
	t.Run("duplicate name", func(t *testing.T) {
		e := newEngine(t)
		_, err := e.Declare(
			cellgraph.CellEntry("a", 1),
			cellgraph.CellEntry("a", 2),
		)
		require.ErrorIs(t, err, cellgraph.ErrDuplicateEntry)
		assert.Equal(t, 0, e.Len())
	})

	t.Run("failing initializer", func(t *testing.T) {
		e := newEngine(t)
		boom := errors.New("boom")
		_, err := e.Declare(
			cellgraph.CellEntry("a", 1),
			cellgraph.InitEntry("b", func(g *cellgraph.Group) (int, error) {
				return 0, boom
			}),
		)
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 0, e.Len())
	})

	t.Run("failing computed entry", func(t *testing.T) {
		e := newEngine(t)
		_, err := e.Declare(
			cellgraph.CellEntry("a", 1),
			cellgraph.ComputedEntry("b", func(g *cellgraph.Group) (int, error) {
				return cellgraph.Read[int](g, "missing"), nil
			}),
		)
		require.ErrorIs(t, err, cellgraph.ErrComputation)
		require.ErrorIs(t, err, cellgraph.ErrUnknownEntry)
		assert.Equal(t, 0, e.Len())
	})
}

func TestLookups(t *testing.T) {
	e := newEngine(t)
	g, err := e.Declare(
		cellgraph.CellEntry("name", "cell"),
		cellgraph.ComputedEntry("size", func(g *cellgraph.Group) (int, error) {
			return len(cellgraph.Read[string](g, "name")), nil
		}),
	)
	require.NoError(t, err)

	tcs := []struct {
		name   string
		lookup func() error
		want   error
	}{
		{"cell", func() error { _, err := cellgraph.CellOf[string](g, "name"); return err }, nil},
		{"computation", func() error { _, err := cellgraph.ComputationOf[int](g, "size"); return err }, nil},
		{"reader of cell", func() error { _, err := cellgraph.ReaderOf[string](g, "name"); return err }, nil},
		{"reader of computation", func() error { _, err := cellgraph.ReaderOf[int](g, "size"); return err }, nil},
		{"unknown", func() error { _, err := cellgraph.CellOf[string](g, "nope"); return err }, cellgraph.ErrUnknownEntry},
		{"cell of wrong type", func() error { _, err := cellgraph.CellOf[int](g, "name"); return err }, cellgraph.ErrEntryType},
		{"computation of a cell", func() error { _, err := cellgraph.ComputationOf[string](g, "name"); return err }, cellgraph.ErrEntryType},
		{"reader of wrong type", func() error { _, err := cellgraph.ReaderOf[bool](g, "size"); return err }, cellgraph.ErrEntryType},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.lookup()
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}

	assert.Panics(t, func() {
		cellgraph.Read[int](g, "name")
	})
}

func TestObserveNotifiesOncePerFlush(t *testing.T) {
	e := newEngine(t)

	//     a
	//   /   \
	//  b     c
	//   \   /
	//     d
	dRuns := 0
	g, err := e.Declare(
		cellgraph.CellEntry("a", "a"),
		cellgraph.ComputedEntry("b", func(g *cellgraph.Group) (string, error) {
			return cellgraph.Read[string](g, "a"), nil
		}),
		cellgraph.ComputedEntry("c", func(g *cellgraph.Group) (string, error) {
			return cellgraph.Read[string](g, "a"), nil
		}),
		cellgraph.ComputedEntry("d", func(g *cellgraph.Group) (string, error) {
			dRuns++
			return cellgraph.Read[string](g, "b") + " " + cellgraph.Read[string](g, "c"), nil
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, dRuns)

	var calls [][]string
	var seen []string
	d, err := cellgraph.ComputationOf[string](g, "d")
	require.NoError(t, err)
	_, err = g.Observe(func(changed []string) {
		calls = append(calls, changed)
		seen = append(seen, d.Peek())
	})
	require.NoError(t, err)

	a, err := cellgraph.CellOf[string](g, "a")
	require.NoError(t, err)
	require.NoError(t, a.Set("aa"))

	assert.Equal(t, 2, dRuns)
	assert.Equal(t, [][]string{{"a", "b", "c", "d"}}, calls)
	assert.Equal(t, []string{"aa aa"}, seen, "entries are settled before the callback")

	require.NoError(t, a.Set("aa"))
	assert.Len(t, calls, 1)
}

func TestObserveReportsOnlyChangedEntries(t *testing.T) {
	e := newEngine(t)
	g, err := e.Declare(
		cellgraph.CellEntry("n", 1),
		cellgraph.ComputedEntry("parity", func(g *cellgraph.Group) (int, error) {
			return cellgraph.Read[int](g, "n") % 2, nil
		}),
	)
	require.NoError(t, err)

	var calls [][]string
	_, err = g.Observe(func(changed []string) {
		calls = append(calls, changed)
	})
	require.NoError(t, err)

	n, err := cellgraph.CellOf[int](g, "n")
	require.NoError(t, err)
	require.NoError(t, n.Set(3))
	require.NoError(t, n.Set(4))
	assert.Equal(t, [][]string{{"n"}, {"n", "parity"}}, calls)
}

func TestBatchCoalescing(t *testing.T) {
	e := newEngine(t)

	sumRuns := 0
	g, err := e.Declare(
		cellgraph.CellEntry("a", 1),
		cellgraph.CellEntry("b", 2),
		cellgraph.ComputedEntry("sum", func(g *cellgraph.Group) (int, error) {
			sumRuns++
			return cellgraph.Read[int](g, "a") + cellgraph.Read[int](g, "b"), nil
		}),
	)
	require.NoError(t, err)

	var calls [][]string
	_, err = g.Observe(func(changed []string) {
		calls = append(calls, changed)
	})
	require.NoError(t, err)

	a, _ := cellgraph.CellOf[int](g, "a")
	b, _ := cellgraph.CellOf[int](g, "b")
	sum, _ := cellgraph.ComputationOf[int](g, "sum")

	t.Run("several writes notify once", func(t *testing.T) {
		err := e.Batch(func() {
			a.Set(2)
			a.Set(3)
			b.Set(10)
		})
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"a", "b", "sum"}}, calls)
		assert.Equal(t, 2, sumRuns)
		assert.Equal(t, 13, sum.Peek())
	})

	t.Run("net zero writes are dropped", func(t *testing.T) {
		calls = nil
		err := e.Batch(func() {
			a.Set(4)
			a.Set(3)
		})
		require.NoError(t, err)
		assert.Empty(t, calls)
		assert.Equal(t, 2, sumRuns)
	})

	t.Run("nested batches flush at the outermost end", func(t *testing.T) {
		calls = nil
		e.StartBatch()
		e.StartBatch()
		require.NoError(t, a.Set(7))
		require.NoError(t, e.EndBatch())
		assert.Empty(t, calls)
		assert.Equal(t, 17, sum.Peek(), "reads settle on demand inside a batch")
		require.NoError(t, e.EndBatch())
		assert.Equal(t, [][]string{{"a", "sum"}}, calls)
	})

	t.Run("unbalanced end panics", func(t *testing.T) {
		assert.Panics(t, func() {
			e.EndBatch()
		})
	})
}

func TestBatchNetZeroWithReadInside(t *testing.T) {
	e := newEngine(t)

	dRuns, tailRuns := 0, 0
	g, err := e.Declare(
		cellgraph.CellEntry("a", 1),
		cellgraph.ComputedEntry("d", func(g *cellgraph.Group) (int, error) {
			dRuns++
			return cellgraph.Read[int](g, "a") * 2, nil
		}),
		cellgraph.ComputedEntry("tail", func(g *cellgraph.Group) (int, error) {
			tailRuns++
			return cellgraph.Read[int](g, "d") + 1, nil
		}),
	)
	require.NoError(t, err)

	var calls [][]string
	_, err = g.Observe(func(changed []string) {
		calls = append(calls, changed)
	})
	require.NoError(t, err)

	a, _ := cellgraph.CellOf[int](g, "a")
	d, _ := cellgraph.ComputationOf[int](g, "d")
	tail, _ := cellgraph.ComputationOf[int](g, "tail")

	mid := 0
	err = e.Batch(func() {
		a.Set(2)
		mid = d.Peek()
		a.Set(1)
	})
	require.NoError(t, err)
	assert.Equal(t, 4, mid)
	assert.Empty(t, calls, "d settled back to its value from before the batch")
	assert.Equal(t, 3, dRuns)
	assert.Equal(t, 1, tailRuns, "tail never saw the intermediate value")
	assert.Equal(t, 2, d.Peek())
	assert.Equal(t, 3, tail.Peek())

	require.NoError(t, a.Set(3))
	assert.Equal(t, [][]string{{"a", "d", "tail"}}, calls)
	assert.Equal(t, 7, tail.Peek())
}

func TestBatchPanicDropsTheCycle(t *testing.T) {
	e := newEngine(t)

	a := cellgraph.NewCell(e, 1)
	double := cellgraph.Memo(e, func() int { return a.Get() * 2 })
	assert.Equal(t, 2, double.Get())

	flushes := e.Stats().Flushes
	assert.Panics(t, func() {
		e.Batch(func() {
			a.Set(5)
			panic("boom")
		})
	})
	require.NoError(t, e.Flush())
	assert.Equal(t, flushes, e.Stats().Flushes, "nothing is left to flush")

	assert.Equal(t, 5, a.Peek())
	assert.Equal(t, 10, double.Peek(), "stale computations settle on read")
	assert.Equal(t, flushes, e.Stats().Flushes)

	require.NoError(t, a.Set(6))
	assert.Equal(t, 12, double.Peek())
}

func TestObserverPanicDoesNotLeakErrors(t *testing.T) {
	e := newEngine(t)
	g, err := e.Declare(
		cellgraph.CellEntry("n", 1),
		cellgraph.ComputedEntry("small", func(g *cellgraph.Group) (int, error) {
			n := cellgraph.Read[int](g, "n")
			if n > 1 {
				return 0, errors.New("too big")
			}
			return n, nil
		}),
	)
	require.NoError(t, err)

	_, err = g.Observe(func([]string) {
		panic("observer")
	})
	require.NoError(t, err)

	n, _ := cellgraph.CellOf[int](g, "n")
	assert.Panics(t, func() {
		n.Set(2)
	})

	other := cellgraph.NewCell(e, 1)
	assert.NoError(t, other.Set(2), "the failure belongs to the flush that panicked")
}

func TestWritesInsideComputationsAreDeferred(t *testing.T) {
	e := newEngine(t)

	//  src       mirror
	//   |          |
	//  copy ~~~> (writes mirror)
	//              |
	//             view
	g, err := e.Declare(
		cellgraph.CellEntry("src", 1),
		cellgraph.CellEntry("mirror", 0),
		cellgraph.ComputedEntry("copy", func(g *cellgraph.Group) (int, error) {
			v := cellgraph.Read[int](g, "src")
			mirror, err := cellgraph.CellOf[int](g, "mirror")
			if err != nil {
				return 0, err
			}
			if err := mirror.Set(v * 10); err != nil {
				return 0, err
			}
			return v, nil
		}),
		cellgraph.ComputedEntry("view", func(g *cellgraph.Group) (int, error) {
			return cellgraph.Read[int](g, "mirror") + 1, nil
		}),
	)
	require.NoError(t, err)

	view, _ := cellgraph.ComputationOf[int](g, "view")
	assert.Equal(t, 11, view.Peek())

	var calls [][]string
	_, err = g.Observe(func(changed []string) {
		calls = append(calls, changed)
	})
	require.NoError(t, err)

	src, _ := cellgraph.CellOf[int](g, "src")
	passes := e.Stats().Passes
	require.NoError(t, src.Set(2))

	assert.Equal(t, 21, view.Peek())
	assert.Equal(t, [][]string{{"src", "mirror", "copy", "view"}}, calls)
	assert.EqualValues(t, 2, e.Stats().Passes-passes)
}

func TestRunawayWritesAreBounded(t *testing.T) {
	e := newEngine(t, cellgraph.WithMaxPasses(5))

	on := cellgraph.NewCell(e, false)
	counter := cellgraph.NewCell(e, 0)
	loop := cellgraph.Memo(e, func() int {
		if !on.Get() {
			return 0
		}
		v := counter.Get()
		counter.Set(v + 1)
		return v
	})
	assert.Equal(t, 0, loop.Get())

	err := on.Set(true)
	require.ErrorIs(t, err, cellgraph.ErrUnsettled)
	assert.Equal(t, 5, counter.Peek())

	require.NoError(t, on.Set(false))
}

func TestObserverWritesStartAnotherCycle(t *testing.T) {
	e := newEngine(t)
	g, err := e.Declare(
		cellgraph.CellEntry("a", 1),
		cellgraph.CellEntry("ack", 0),
	)
	require.NoError(t, err)

	a, _ := cellgraph.CellOf[int](g, "a")
	ack, _ := cellgraph.CellOf[int](g, "ack")

	var calls [][]string
	_, err = g.Observe(func(changed []string) {
		calls = append(calls, changed)
		if changed[0] == "a" {
			assert.NoError(t, ack.Set(a.Peek()))
		}
	})
	require.NoError(t, err)

	require.NoError(t, a.Set(2))
	assert.Equal(t, [][]string{{"a"}, {"ack"}}, calls)
	assert.Equal(t, 2, ack.Peek())
}

func TestSubscriptionLifecycle(t *testing.T) {
	t.Run("last subscription disposes the group", func(t *testing.T) {
		e := newEngine(t)
		g, err := e.Declare(
			cellgraph.CellEntry("a", 1),
			cellgraph.ComputedEntry("double", func(g *cellgraph.Group) (int, error) {
				return cellgraph.Read[int](g, "a") * 2, nil
			}),
		)
		require.NoError(t, err)
		assert.Equal(t, 2, e.Len())

		calls := 0
		sub, err := g.Observe(func(changed []string) {
			calls++
		})
		require.NoError(t, err)

		a, _ := cellgraph.CellOf[int](g, "a")
		require.NoError(t, a.Set(2))
		assert.Equal(t, 1, calls)

		require.NoError(t, sub.Dispose())
		assert.Equal(t, 0, e.Len())
		assert.ErrorIs(t, sub.Dispose(), cellgraph.ErrUseAfterDispose)
		assert.ErrorIs(t, a.Set(3), cellgraph.ErrUseAfterDispose)
		assert.Equal(t, 1, calls)

		_, err = cellgraph.CellOf[int](g, "a")
		assert.ErrorIs(t, err, cellgraph.ErrUseAfterDispose)
		_, err = g.Observe(func([]string) {})
		assert.ErrorIs(t, err, cellgraph.ErrUseAfterDispose)
		assert.ErrorIs(t, g.Dispose(), cellgraph.ErrUseAfterDispose)
	})

	t.Run("group outlives other subscriptions", func(t *testing.T) {
		e := newEngine(t)
		g, err := e.Declare(cellgraph.CellEntry("a", 1))
		require.NoError(t, err)

		firstCalls, secondCalls := 0, 0
		first, err := g.Observe(func([]string) { firstCalls++ })
		require.NoError(t, err)
		_, err = g.Observe(func([]string) { secondCalls++ })
		require.NoError(t, err)

		require.NoError(t, first.Dispose())
		assert.Equal(t, 1, e.Len())

		a, _ := cellgraph.CellOf[int](g, "a")
		require.NoError(t, a.Set(2))
		assert.Equal(t, 0, firstCalls)
		assert.Equal(t, 1, secondCalls)
	})

	t.Run("disposed during a flush is not notified", func(t *testing.T) {
		e := newEngine(t)
		g, err := e.Declare(cellgraph.CellEntry("a", 1))
		require.NoError(t, err)

		var second *cellgraph.Subscription
		secondCalls := 0
		_, err = g.Observe(func([]string) {
			require.NoError(t, second.Dispose())
		})
		require.NoError(t, err)
		second, err = g.Observe(func([]string) { secondCalls++ })
		require.NoError(t, err)

		a, _ := cellgraph.CellOf[int](g, "a")
		require.NoError(t, a.Set(2))
		assert.Equal(t, 0, secondCalls)
	})

	t.Run("group dispose", func(t *testing.T) {
		e := newEngine(t)
		g, err := e.Declare(
			cellgraph.CellEntry("a", 1),
			cellgraph.CellEntry("b", 2),
		)
		require.NoError(t, err)
		sub, err := g.Observe(func([]string) {})
		require.NoError(t, err)

		require.NoError(t, g.Dispose())
		assert.Equal(t, 0, e.Len())
		assert.ErrorIs(t, sub.Dispose(), cellgraph.ErrUseAfterDispose)
	})
}
