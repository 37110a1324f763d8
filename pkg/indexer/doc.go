// Package indexer turns artifact contexts into index mutations.
//
// An [Engine] extracts metadata with the context's creators and buffers the
// resulting document in the context's store. It never commits: callers
// decide where the commit boundary falls, so a batch of artifacts costs a
// single commit.
//
//	engine := indexer.New()
//	for _, ac := range artifacts {
//	    if err := engine.Update(ctx, ic, ac); err != nil {
//	        return err
//	    }
//	}
//	return ic.Commit()
//
// # Thread Safety
//
// Engines are stateless and safe for concurrent use. Concurrent writers to
// one context are serialized by its store.
package indexer
