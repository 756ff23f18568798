// Package worker provides a sharded goroutine pool for fault decisions.
//
// Each worker owns one fault.Injector backed by a private random stream
// derived from the pool seed. Jobs submitted to the same shard run in
// submission order on the same worker, so a run is reproducible for a given
// seed and worker count no matter how the goroutines are scheduled.
//
// # Basic Usage
//
//	pool, err := worker.NewPool(worker.PoolConfig{
//	    NumWorkers: 4,
//	    QueueSize:  100,
//	    Seed:       42,
//	    Profile:    fault.DefaultProfile(),
//	})
//	if err != nil {
//	    return err
//	}
//	pool.Start(ctx)
//	defer pool.Stop()
//
//	pool.SubmitWait(nodeIndex, func(inj *fault.Injector) {
//	    copies := inj.DecideDuplicationCount()
//	    // ...
//	})
//
// # Graceful Shutdown
//
// Stop() closes the queues and waits for every accepted job to finish.
// Cancelling the context passed to Start() makes further submissions fail.
package worker
