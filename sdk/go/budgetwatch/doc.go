// Package budgetwatch provides in-process budget tracking and checkpoint
// scheduling for Go agent frameworks. Callers start a session under a
// resource profile, report consumption as it happens, and receive the
// checkpoint obligations that consumption made due.
//
// Usage:
//
//	bw, err := budgetwatch.New(budgetwatch.WithConfig("~/.budgetwatch/budgetwatch.yaml"))
//	sess, err := bw.Start(ctx, "context-200k", "")
//	res, err := bw.Report(ctx, sess.ID, 42000)
//	for _, ob := range res.Obligations {
//	    // write the checkpoint described by ob.Document
//	}
//
// Meter wraps a unit-returning function and reports its usage after every
// call:
//
//	step := bw.Meter(sess.ID, func(ctx context.Context) (int64, error) {
//	    return callModel(ctx)
//	})
//	res, err := step(ctx)
//
// The SDK links directly against internal packages for zero-subprocess
// overhead. External users import github.com/ppiankov/budgetwatch/sdk/go/budgetwatch.
package budgetwatch
