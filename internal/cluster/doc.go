// Package cluster provides multi-node cluster management.
//
// A Cluster manages multiple simulated Node instances. Nodes are returned in
// insertion order so that the harness visits them in the same order on
// every run, which keeps seeded runs reproducible.
//
// # Basic Usage
//
//	c := cluster.New()
//
//	// Create and add nodes
//	if err := c.CreateNodes(5, "node"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Access individual nodes
//	if n, ok := c.GetNode("node-1"); ok {
//	    _ = n.Crash(round)
//	}
//
//	fmt.Printf("live: %d, failed: %d\n", c.LiveCount(), c.FailedCount())
//
// # Thread Safety
//
// All cluster operations are thread-safe and can be called concurrently.
// ResetAll resets nodes in parallel.
package cluster
