// Package fault provides the fault-injection decision engine.
//
// An Injector answers three questions for the harness driving a simulated
// distributed system: how many times an outbound message is delivered
// (0 = lost, 1 = normal, 2 = duplicated), whether a live node crashes, and
// whether a failed node recovers. It never performs the drop, crash or
// restart itself.
//
// # Basic Usage
//
//	profile := fault.DefaultProfile()
//	profile.Probabilities.NodeFail = 0.1
//
//	inj, err := fault.New(profile, fault.NewSource(42))
//	if err != nil {
//	    log.Fatal(err) // probability outside [0, 1]
//	}
//
//	for range inj.DecideDuplicationCount() {
//	    enqueue(msg)
//	}
//
// # Randomness
//
// Every worker owns its own Source. Streams are never shared, so no locking
// is needed and a run is reproducible from its seed. Use DeriveSeed to give
// each worker an independent stream from one base seed:
//
//	inj, _ := fault.New(profile, fault.NewSource(fault.DeriveSeed(seed, workerIndex)))
//
// All comparisons are strict (sample < p) against samples in [0, 1), so a
// probability of 0 means never and 1 means always.
package fault
