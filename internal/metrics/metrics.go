package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"faultsim/internal/fault"
)

// Metrics はフォールト判定の結果を集計する
type Metrics struct {
	messagesAttempted  atomic.Uint64
	messagesLost       atomic.Uint64
	messagesDelivered  atomic.Uint64
	messagesDuplicated atomic.Uint64

	copiesDelivered     atomic.Uint64
	copiesUndeliverable atomic.Uint64

	crashDraws      atomic.Uint64
	crashProposals  atomic.Uint64
	crashes         atomic.Uint64
	crashSuppressed atomic.Uint64

	recoveryDraws     atomic.Uint64
	recoveryProposals atomic.Uint64
	recoveries        atomic.Uint64

	mu        sync.RWMutex
	startTime time.Time
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// RecordDuplication は送信判定の結果（0, 1, 2）を記録する
func (m *Metrics) RecordDuplication(count int) {
	m.messagesAttempted.Add(1)

	var outcome string
	switch count {
	case fault.Lost:
		m.messagesLost.Add(1)
		outcome = "lost"
	case fault.Delivered:
		m.messagesDelivered.Add(1)
		outcome = "delivered"
	default:
		m.messagesDuplicated.Add(1)
		outcome = "duplicated"
	}
	decisionsTotal.WithLabelValues("duplication", outcome).Inc()
}

// RecordCopy は配送されたコピーを記録する（宛先が停止中なら undeliverable）
func (m *Metrics) RecordCopy(delivered bool) {
	if delivered {
		m.copiesDelivered.Add(1)
		copiesTotal.WithLabelValues("delivered").Inc()
		return
	}
	m.copiesUndeliverable.Add(1)
	copiesTotal.WithLabelValues("undeliverable").Inc()
}

// RecordCrashDraw はクラッシュ判定を記録する
func (m *Metrics) RecordCrashDraw(failed bool) {
	m.crashDraws.Add(1)
	if failed {
		m.crashProposals.Add(1)
	}
	decisionsTotal.WithLabelValues("node_fail", boolOutcome(failed)).Inc()
}

// RecordCrash は実際に適用されたクラッシュを記録する
func (m *Metrics) RecordCrash() {
	m.crashes.Add(1)
	transitionsTotal.WithLabelValues("crash").Inc()
}

// RecordCrashSuppressed は上限により抑止されたクラッシュを記録する
func (m *Metrics) RecordCrashSuppressed() {
	m.crashSuppressed.Add(1)
	transitionsTotal.WithLabelValues("crash_suppressed").Inc()
}

// RecordRecoveryDraw は復旧判定を記録する
func (m *Metrics) RecordRecoveryDraw(recovered bool) {
	m.recoveryDraws.Add(1)
	if recovered {
		m.recoveryProposals.Add(1)
	}
	decisionsTotal.WithLabelValues("node_recover", boolOutcome(recovered)).Inc()
}

// RecordRecovery は実際に適用された復旧を記録する
func (m *Metrics) RecordRecovery() {
	m.recoveries.Add(1)
	transitionsTotal.WithLabelValues("recover").Inc()
}

func boolOutcome(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Reset はカウンタをリセットする（Prometheusのカウンタは単調増加のまま）
func (m *Metrics) Reset() {
	for _, c := range []*atomic.Uint64{
		&m.messagesAttempted, &m.messagesLost, &m.messagesDelivered, &m.messagesDuplicated,
		&m.copiesDelivered, &m.copiesUndeliverable,
		&m.crashDraws, &m.crashProposals, &m.crashes, &m.crashSuppressed,
		&m.recoveryDraws, &m.recoveryProposals, &m.recoveries,
	} {
		c.Store(0)
	}

	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	MessagesAttempted  uint64 `json:"messages_attempted"`
	MessagesLost       uint64 `json:"messages_lost"`
	MessagesDelivered  uint64 `json:"messages_delivered"`
	MessagesDuplicated uint64 `json:"messages_duplicated"`

	CopiesDelivered     uint64 `json:"copies_delivered"`
	CopiesUndeliverable uint64 `json:"copies_undeliverable"`

	CrashDraws        uint64 `json:"crash_draws"`
	CrashProposals    uint64 `json:"crash_proposals"`
	Crashes           uint64 `json:"crashes"`
	CrashSuppressed   uint64 `json:"crash_suppressed"`
	RecoveryDraws     uint64 `json:"recovery_draws"`
	RecoveryProposals uint64 `json:"recovery_proposals"`
	Recoveries        uint64 `json:"recoveries"`

	Rates   Rates         `json:"rates"`
	Elapsed time.Duration `json:"elapsed"`
}

// Rates は判定結果の経験的な比率
type Rates struct {
	Lost        float64 `json:"lost"`
	Delivered   float64 `json:"delivered"`
	Duplicated  float64 `json:"duplicated"`
	NodeFail    float64 `json:"node_fail"`
	NodeRecover float64 `json:"node_recover"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		MessagesAttempted:   m.messagesAttempted.Load(),
		MessagesLost:        m.messagesLost.Load(),
		MessagesDelivered:   m.messagesDelivered.Load(),
		MessagesDuplicated:  m.messagesDuplicated.Load(),
		CopiesDelivered:     m.copiesDelivered.Load(),
		CopiesUndeliverable: m.copiesUndeliverable.Load(),
		CrashDraws:          m.crashDraws.Load(),
		CrashProposals:      m.crashProposals.Load(),
		Crashes:             m.crashes.Load(),
		CrashSuppressed:     m.crashSuppressed.Load(),
		RecoveryDraws:       m.recoveryDraws.Load(),
		RecoveryProposals:   m.recoveryProposals.Load(),
		Recoveries:          m.recoveries.Load(),
	}

	s.Rates = Rates{
		Lost:        ratio(s.MessagesLost, s.MessagesAttempted),
		Delivered:   ratio(s.MessagesDelivered, s.MessagesAttempted),
		Duplicated:  ratio(s.MessagesDuplicated, s.MessagesAttempted),
		NodeFail:    ratio(s.CrashProposals, s.CrashDraws),
		NodeRecover: ratio(s.RecoveryProposals, s.RecoveryDraws),
	}

	m.mu.RLock()
	s.Elapsed = time.Since(m.startTime)
	m.mu.RUnlock()

	return s
}

func ratio(n, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
