package recovery

import (
	"sync"

	"faultsim/internal/cluster"
	"faultsim/internal/events"
	"faultsim/internal/fault"
	"faultsim/internal/logger"
	"faultsim/internal/metrics"
	"faultsim/internal/node"
)

// Config はRecoveryManagerの設定
type Config struct {
	MinDownRounds int // 復旧判定を始めるまでに停止している最小ラウンド数
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		MinDownRounds: 1,
	}
}

// Stats は復旧統計
type Stats struct {
	Draws         uint64 `json:"draws"`
	Proposals     uint64 `json:"proposals"`
	Recoveries    uint64 `json:"recoveries"`
	TotalDowntime uint64 `json:"total_downtime_rounds"`
}

// MeanDowntime は復旧したノードの平均停止ラウンド数を返す
func (s Stats) MeanDowntime() float64 {
	if s.Recoveries == 0 {
		return 0
	}
	return float64(s.TotalDowntime) / float64(s.Recoveries)
}

// Manager はインジェクタの判定に従って停止ノードを復旧させる
type Manager struct {
	config   Config
	cluster  *cluster.Cluster
	eventBus *events.Bus
	metrics  *metrics.Metrics

	mu        sync.Mutex
	proposals map[string]struct{}
	draws     uint64 // Apply で確定するまでの今ラウンドの判定回数
	stats     Stats
}

// New は新しいRecoveryManagerを作成する
func New(c *cluster.Cluster, config Config) *Manager {
	if config.MinDownRounds < 0 {
		config.MinDownRounds = 0
	}
	return &Manager{
		config:    config,
		cluster:   c,
		proposals: make(map[string]struct{}),
	}
}

// SetEventBus はイベントバスを設定する
func (m *Manager) SetEventBus(bus *events.Bus) {
	m.eventBus = bus
}

// SetMetrics はメトリクスを設定する
func (m *Manager) SetMetrics(mt *metrics.Metrics) {
	m.metrics = mt
}

// publishEvent はイベントを発行する
func (m *Manager) publishEvent(event events.Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(event)
	}
}

// Propose は停止中のノードについて HasNodeRecovered を1回引く。
// 停止期間が MinDownRounds に満たないノードは乱数を消費しない。
func (m *Manager) Propose(n *node.Node, inj *fault.Injector, round int) bool {
	if n.Status() != node.StatusFailed {
		return false
	}
	if round-n.FailedSince() < m.config.MinDownRounds {
		return false
	}

	recovered := inj.HasNodeRecovered()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.draws++
	if recovered {
		m.proposals[n.ID()] = struct{}{}
	}
	return recovered
}

// Apply は登録された候補をノード順に復旧させ、復旧したノードIDを返す
func (m *Manager) Apply(round int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commitDraws()
	if len(m.proposals) == 0 {
		return nil
	}

	var recovered []string
	for _, n := range m.cluster.Nodes() {
		if _, ok := m.proposals[n.ID()]; !ok {
			continue
		}

		downtime := round - n.FailedSince()
		if err := n.Recover(round); err != nil {
			logger.Warn(n.ID(), "RecoveryManager: failed to recover node: %v", err)
			continue
		}

		m.stats.Recoveries++
		m.stats.TotalDowntime += uint64(max(downtime, 0))
		if m.metrics != nil {
			m.metrics.RecordRecovery()
		}
		logger.Info(n.ID(), "RecoveryManager: recovered node at round %d (down %d rounds)", round, downtime)
		m.publishEvent(events.NewNodeRecoveredEvent(n.ID(), round, downtime))
		recovered = append(recovered, n.ID())
	}

	clear(m.proposals)
	return recovered
}

// commitDraws は今ラウンドの判定回数を統計とメトリクスに反映する
func (m *Manager) commitDraws() {
	hits := uint64(len(m.proposals))
	m.stats.Draws += m.draws
	m.stats.Proposals += hits
	if m.metrics != nil {
		for i := range m.draws {
			m.metrics.RecordRecoveryDraw(i < hits)
		}
	}
	m.draws = 0
}

// Discard は今ラウンドの判定と候補を確定せずに破棄し、破棄した候補数を返す
func (m *Manager) Discard() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.proposals)
	clear(m.proposals)
	m.draws = 0
	return n
}

// Stats は復旧統計を返す
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
