package health

import (
	"context"
	"fmt"
	"testing"

	"github.com/jonwraymond/toolbatch/cache"
)

func BenchmarkCacheChecker_Check(b *testing.B) {
	store := cache.NewStore[string](cache.DefaultConfig())
	for i := range 100 {
		_ = store.SetKey(fmt.Sprintf("k%d", i), "value", cache.SetOptions{})
	}
	checker := NewCacheChecker(store, CacheCheckerConfig{})
	ctx := context.Background()

	b.ResetTimer()
	for b.Loop() {
		_ = checker.Check(ctx)
	}
}

func BenchmarkAggregator_CheckAll(b *testing.B) {
	for _, parallel := range []bool{false, true} {
		b.Run(fmt.Sprintf("parallel=%v", parallel), func(b *testing.B) {
			agg := NewAggregator(AggregatorConfig{Parallel: parallel})
			for i := range 5 {
				name := fmt.Sprintf("check%d", i)
				agg.Register(name, NewCheckerFunc(name, func(context.Context) Result {
					return Healthy("ok")
				}))
			}
			ctx := context.Background()

			b.ResetTimer()
			for b.Loop() {
				_ = agg.CheckAll(ctx)
			}
		})
	}
}
