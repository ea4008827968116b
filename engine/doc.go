// Package engine assembles the tool cache, invalidation policy, snapshot
// persistence, prefetcher and batch runner into one object.
//
// An Engine owns all shared state. Tests and embedders create as many
// independent engines as they need; nothing is process-global.
//
//	eng, err := engine.New(ctx, config.Default(), executor)
//	if err != nil {
//	    return err
//	}
//	defer eng.Close(ctx)
//
//	results := eng.Execute(ctx, calls, batch.Options{})
package engine
