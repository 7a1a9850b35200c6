package ops

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindRateLimit, KindOf(NewFault(KindRateLimit, "send_message", "429")))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("wrapped: %w", NewFault(KindConflict, "move_item", "stale"))))
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
}

func TestKindTransient(t *testing.T) {
	for _, k := range []Kind{KindRateLimit, KindConnectionLoss, KindTimeout, KindCredentialExpired} {
		assert.True(t, k.Transient(), k)
	}
	for _, k := range []Kind{KindConflict, KindInternal, KindUnknown, KindNone} {
		assert.False(t, k.Transient(), k)
	}
}

func TestSpecBind(t *testing.T) {
	t.Run("never fails at zero probability", func(t *testing.T) {
		s := Spec{Name: "noop"}
		fn := s.Bind(rand.New(rand.NewSource(1)), noSleep)
		for i := 0; i < 100; i++ {
			require.NoError(t, fn(context.Background()))
		}
	})

	t.Run("always fails at probability one", func(t *testing.T) {
		s := Spec{Name: "broken", FailureProbability: 1, FailureKind: KindTimeout}
		err := s.Bind(rand.New(rand.NewSource(1)), noSleep)(context.Background())

		var f *Fault
		require.ErrorAs(t, err, &f)
		assert.Equal(t, KindTimeout, f.Kind)
		assert.Equal(t, "broken", f.Operation)
	})

	t.Run("defaults missing kind to internal", func(t *testing.T) {
		s := Spec{Name: "broken", FailureProbability: 1}
		err := s.Bind(rand.New(rand.NewSource(1)), noSleep)(context.Background())
		assert.Equal(t, KindInternal, KindOf(err))
	})

	t.Run("sleeps a latency inside the range", func(t *testing.T) {
		s := Spec{Name: "slow", LatencyMin: 10 * time.Millisecond, LatencyMax: 20 * time.Millisecond}
		var slept []time.Duration
		sleep := func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}
		fn := s.Bind(rand.New(rand.NewSource(7)), sleep)
		for i := 0; i < 50; i++ {
			require.NoError(t, fn(context.Background()))
		}
		require.Len(t, slept, 50)
		for _, d := range slept {
			assert.GreaterOrEqual(t, d, s.LatencyMin)
			assert.LessOrEqual(t, d, s.LatencyMax)
		}
	})

	t.Run("returns context error when cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := Spec{Name: "slow", LatencyMin: time.Second, LatencyMax: time.Second}
		err := s.Bind(rand.New(rand.NewSource(1)), nil)(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCatalogValidate(t *testing.T) {
	require.NoError(t, DefaultCatalog().Validate())

	cases := map[string]Catalog{
		"empty":          {},
		"missing name":   {{}},
		"duplicate":      {{Name: "a"}, {Name: "a"}},
		"inverted range": {{Name: "a", LatencyMin: time.Second, LatencyMax: time.Millisecond}},
		"negative":       {{Name: "a", LatencyMin: -time.Millisecond}},
		"probability":    {{Name: "a", FailureProbability: 1.5, FailureKind: KindTimeout}},
		"unknown kind":   {{Name: "a", FailureProbability: 0.5, FailureKind: "bogus"}},
		"weight":         {{Name: "a", Weight: -1}},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, c.Validate())
		})
	}
}

func TestCatalogLookup(t *testing.T) {
	c := DefaultCatalog()
	s, ok := c.Lookup("upload_file")
	require.True(t, ok)
	assert.Equal(t, "file_transfer", s.Policy)

	_, ok = c.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"create_item", "send_message", "upload_file", "move_item", "approve_item"}, c.Names())
}

func TestLoadCatalog(t *testing.T) {
	t.Run("parses durations and kinds", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		body := `operations:
  - name: checkout
    latency_min: 5ms
    latency_max: 15ms
    failure_probability: 0.25
    failure_kind: connection_loss
    policy: datastore
    weight: 4
  - name: browse
    latency_max: 1ms
`
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		c, err := LoadCatalog(path)
		require.NoError(t, err)
		require.Len(t, c, 2)
		assert.Equal(t, 5*time.Millisecond, c[0].LatencyMin)
		assert.Equal(t, 15*time.Millisecond, c[0].LatencyMax)
		assert.Equal(t, KindConnectionLoss, c[0].FailureKind)
		assert.Equal(t, 4, c[0].Weight)
		assert.Equal(t, "browse", c[1].Name)
	})

	t.Run("rejects invalid entries", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.yaml")
		require.NoError(t, os.WriteFile(path, []byte("operations:\n  - name: a\n  - name: a\n"), 0o644))
		_, err := LoadCatalog(path)
		assert.ErrorContains(t, err, "duplicate")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestSelectors(t *testing.T) {
	c := DefaultCatalog()
	const draws = 20000

	t.Run("uniform covers every entry evenly", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		counts := map[string]int{}
		sel := Uniform{Catalog: c}
		for i := 0; i < draws; i++ {
			counts[sel.Pick(rng).Name]++
		}
		expected := float64(draws) / float64(len(c))
		for _, name := range c.Names() {
			assert.InDelta(t, expected, counts[name], expected*0.1, name)
		}
	})

	t.Run("weighted follows weights", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		counts := map[string]int{}
		sel := NewWeighted(c)
		for i := 0; i < draws; i++ {
			counts[sel.Pick(rng).Name]++
		}
		// weights 3,2,1,2,1
		assert.InDelta(t, draws*3/9, counts["create_item"], draws*0.03)
		assert.InDelta(t, draws*1/9, counts["upload_file"], draws*0.03)
		assert.Greater(t, counts["create_item"], counts["send_message"])
	})

	t.Run("weighted with zero weights degrades to uniform", func(t *testing.T) {
		rng := rand.New(rand.NewSource(1))
		sel := NewWeighted(Catalog{{Name: "a"}, {Name: "b"}})
		seen := map[string]bool{}
		for i := 0; i < 100; i++ {
			seen[sel.Pick(rng).Name] = true
		}
		assert.Len(t, seen, 2)
	})
}
