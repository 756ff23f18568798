// Package traffic provides a load generator for the simulated cluster.
//
// The Generator produces the messages a node sends in one round. It is
// deterministic and draws no random numbers, so the only randomness in a run
// comes from the fault injectors.
//
// # Basic Usage
//
//	g := traffic.New(traffic.DefaultConfig())
//
//	for _, msg := range g.Messages(round, n.ID(), c.IDs()) {
//	    nw.Send(msg, inj)
//	}
//
// # Configuration
//
// The Config struct allows tuning:
//   - MessagesPerRound: messages each live node sends per round
//   - PayloadSize: size of each payload in bytes
package traffic
