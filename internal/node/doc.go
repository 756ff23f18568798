// Package node provides a simulated node of the distributed system under test.
//
// A Node has a liveness state driven by the harness and an inbox of
// delivered messages. It never decides on its own to crash or recover; the
// chaos and recovery drivers flip it based on fault.Injector draws.
//
// # Basic Usage
//
//	n := node.New("node-1")
//
//	if err := n.Deliver(msg); err != nil {
//	    // errors.Is(err, node.ErrNodeFailed) when the node is down
//	}
//
//	_ = n.Crash(round)
//	_ = n.Recover(round + 3)
//
// # Node Lifecycle
//
// A Node starts Live. The lifecycle is: Live -> Failed -> Live.
// Crash on a failed node and Recover on a live node return errors.
//
// # Duplicates
//
// Deliver counts copies whose message ID was already received, so a run can
// check that duplicated messages actually reached their destination twice.
//
// # Thread Safety
//
// All operations on a Node are protected by a RWMutex.
package node
