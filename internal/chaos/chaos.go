package chaos

import (
	"sync"

	"faultsim/internal/cluster"
	"faultsim/internal/events"
	"faultsim/internal/fault"
	"faultsim/internal/logger"
	"faultsim/internal/metrics"
	"faultsim/internal/node"
)

// Config はクラッシュドライバの設定
type Config struct {
	MaxFailedNodes int // 同時に停止できるノード数の上限（0で無制限）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		MaxFailedNodes: 0,
	}
}

// Stats はクラッシュの統計情報
type Stats struct {
	Draws      uint64 `json:"draws"`
	Proposals  uint64 `json:"proposals"`
	Crashes    uint64 `json:"crashes"`
	Suppressed uint64 `json:"suppressed"`
}

// Monkey はインジェクタの判定に従ってノードをクラッシュさせる。
// Propose はワーカーから並行に呼ばれ、Apply はラウンドの区切りで1回だけ呼ばれる。
type Monkey struct {
	config   Config
	cluster  *cluster.Cluster
	eventBus *events.Bus
	metrics  *metrics.Metrics

	mu        sync.Mutex
	proposals map[string]struct{}
	draws     uint64 // Apply で確定するまでの今ラウンドの判定回数
	stats     Stats
}

// New は新しいクラッシュドライバを作成する
func New(c *cluster.Cluster, config Config) *Monkey {
	if config.MaxFailedNodes < 0 {
		config.MaxFailedNodes = 0
	}
	return &Monkey{
		config:    config,
		cluster:   c,
		proposals: make(map[string]struct{}),
	}
}

// SetEventBus はイベントバスを設定する
func (m *Monkey) SetEventBus(bus *events.Bus) {
	m.eventBus = bus
}

// SetMetrics はメトリクスを設定する
func (m *Monkey) SetMetrics(mt *metrics.Metrics) {
	m.metrics = mt
}

// publishEvent はイベントを発行する
func (m *Monkey) publishEvent(event events.Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(event)
	}
}

// Propose は稼働中のノードについて HasNodeFailed を1回引き、
// 真ならクラッシュ候補として登録する。統計は Apply で確定する。
func (m *Monkey) Propose(n *node.Node, inj *fault.Injector) bool {
	if n.Status() != node.StatusLive {
		return false
	}

	failed := inj.HasNodeFailed()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.draws++
	if failed {
		m.proposals[n.ID()] = struct{}{}
	}
	return failed
}

// Apply は登録された候補をノード順にクラッシュさせ、クラッシュしたノードIDを返す。
// 上限を超える候補は抑制される。
func (m *Monkey) Apply(round int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commitDraws()
	if len(m.proposals) == 0 {
		return nil
	}

	var crashed []string
	failedCount := m.cluster.FailedCount()
	for _, n := range m.cluster.Nodes() {
		if _, ok := m.proposals[n.ID()]; !ok {
			continue
		}

		if m.config.MaxFailedNodes > 0 && failedCount >= m.config.MaxFailedNodes {
			m.stats.Suppressed++
			if m.metrics != nil {
				m.metrics.RecordCrashSuppressed()
			}
			logger.Debug(n.ID(), "crash suppressed at round %d (%d nodes already failed)", round, failedCount)
			m.publishEvent(events.NewCrashSuppressedEvent(n.ID(), round))
			continue
		}

		if err := n.Crash(round); err != nil {
			logger.Warn(n.ID(), "ChaosMonkey: failed to crash node: %v", err)
			continue
		}
		failedCount++
		m.stats.Crashes++
		if m.metrics != nil {
			m.metrics.RecordCrash()
		}
		logger.Warn(n.ID(), "ChaosMonkey: crashed node at round %d", round)
		m.publishEvent(events.NewNodeCrashedEvent(n.ID(), round))
		crashed = append(crashed, n.ID())
	}

	clear(m.proposals)
	return crashed
}

// commitDraws は今ラウンドの判定回数を統計とメトリクスに反映する
func (m *Monkey) commitDraws() {
	hits := uint64(len(m.proposals))
	m.stats.Draws += m.draws
	m.stats.Proposals += hits
	if m.metrics != nil {
		for i := range m.draws {
			m.metrics.RecordCrashDraw(i < hits)
		}
	}
	m.draws = 0
}

// Discard は今ラウンドの判定と候補を確定せずに破棄し、破棄した候補数を返す
func (m *Monkey) Discard() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.proposals)
	clear(m.proposals)
	m.draws = 0
	return n
}

// Stats はクラッシュ統計を返す
func (m *Monkey) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
