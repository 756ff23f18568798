// Package network simulates an unreliable message transport between nodes.
//
// Send asks a Decider (normally a worker's *fault.Injector) how many copies
// of a message the network produces and parks the decision until the round
// barrier. Flush then commits every parked decision in (From, ID) order:
// metrics and message events are recorded, and the copies are delivered to
// their destination nodes. Discard drops parked decisions without recording
// anything, which is how an interrupted round leaves no trace.
//
// # Basic Usage
//
//	nw := network.New(cluster, metrics)
//	nw.SetEventBus(bus)
//
//	nw.Send(node.Message{ID: "node-1/1/0", From: "node-1", To: "node-2", Round: 1}, inj)
//	res := nw.Flush()
//	fmt.Println(res.Delivered, res.Undeliverable)
package network
