// Package metrics collects fault-injection decision statistics.
//
// Metrics counts every decision the harness obtains from a fault.Injector
// (message lost, delivered once, duplicated; node crash and recovery draws)
// and every transition the harness actually applies. Snapshot derives the
// empirical rates, which a run compares against the configured profile.
//
// # Basic Usage
//
//	m := metrics.New()
//
//	m.RecordDuplication(inj.DecideDuplicationCount())
//	m.RecordCrashDraw(inj.HasNodeFailed())
//
//	snap := m.Snapshot()
//	fmt.Printf("loss: %.3f, duplicated: %.3f\n", snap.Rates.Lost, snap.Rates.Duplicated)
//
// # Prometheus
//
// Each record call also updates a collector on Registry. Mount Handler on
// /metrics to scrape them. Prometheus counters are process-wide and are not
// cleared by Reset.
//
// # Thread Safety
//
// All operations use atomic counters and are safe for concurrent access.
package metrics
