// Package runtime instantiates compiled jzc modules and calls their
// exports.
//
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	inst, err := rt.Instantiate(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	result, err := inst.Call(ctx, "main", 3)
//
// The "math" import namespace (random, trigonometric, logarithmic,
// rounding, pow/atan2/hypot) is registered
// automatically; jzc only requests the subset of it a given module
// actually imports, so unused math functions never get called.
//
// Instance is not safe for concurrent use; create one Instance per
// goroutine, or synchronize access externally.
package runtime
