package scenario

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"faultsim/internal/chaos"
	"faultsim/internal/cluster"
	"faultsim/internal/events"
	"faultsim/internal/fault"
	"faultsim/internal/logger"
	"faultsim/internal/metrics"
	"faultsim/internal/network"
	"faultsim/internal/node"
	"faultsim/internal/recovery"
	"faultsim/internal/traffic"
	"faultsim/internal/worker"
)

// ErrAlreadyRunning はエンジンが実行中のときに返される
var ErrAlreadyRunning = errors.New("scenario is already running")

var tracer = otel.Tracer("faultsim/scenario")

// Config はシナリオの設定
type Config struct {
	Name        string        // シナリオ名
	Description string        // 説明
	NodeCount   int           // ノード数
	Workers     int           // ワーカー数（乱数列の数）
	Rounds      int           // ラウンド数
	Seed        uint64        // ベースシード
	Profile     fault.Profile // 信頼性プロファイル

	// トラフィック設定
	Traffic traffic.Config

	// クラッシュ設定
	EnableCrashes  bool // クラッシュ注入を有効化
	MaxFailedNodes int  // 同時停止数の上限（0で無制限）

	// 復旧設定
	EnableRecovery bool // 復旧を有効化
	MinDownRounds  int  // 復旧判定までの最小停止ラウンド数

	Timeout time.Duration // 実行時間の上限（0で無制限）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:           "default",
		Description:    "Default fault profile with crashes and recovery",
		NodeCount:      5,
		Workers:        4,
		Rounds:         100,
		Seed:           1,
		Profile:        fault.DefaultProfile(),
		Traffic:        traffic.DefaultConfig(),
		EnableCrashes:  true,
		MaxFailedNodes: 0,
		EnableRecovery: true,
		MinDownRounds:  1,
	}
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.NodeCount < 1 {
		return fmt.Errorf("node count must be positive, got %d", c.NodeCount)
	}
	if c.Workers < 1 {
		return fmt.Errorf("worker count must be positive, got %d", c.Workers)
	}
	if c.Rounds < 1 {
		return fmt.Errorf("rounds must be positive, got %d", c.Rounds)
	}
	if c.Traffic.MessagesPerRound < 0 || c.Traffic.PayloadSize < 0 {
		return fmt.Errorf("traffic settings must not be negative: %+v", c.Traffic)
	}
	if c.MaxFailedNodes < 0 {
		return fmt.Errorf("max failed nodes must not be negative, got %d", c.MaxFailedNodes)
	}
	if c.MinDownRounds < 0 {
		return fmt.Errorf("min down rounds must not be negative, got %d", c.MinDownRounds)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %v", c.Timeout)
	}
	if err := c.Profile.Validate(); err != nil {
		return fmt.Errorf("invalid reliability profile: %w", err)
	}
	return nil
}

// MessageStats はメッセージ判定の集計
type MessageStats struct {
	Attempted     uint64 `json:"attempted"`
	Lost          uint64 `json:"lost"`
	Delivered     uint64 `json:"delivered"`
	Duplicated    uint64 `json:"duplicated"`
	Copies        uint64 `json:"copies"`
	Undeliverable uint64 `json:"undeliverable"`
}

// NodeStats はノードごとの集計
type NodeStats struct {
	Status     string `json:"status"`
	Received   uint64 `json:"received"`
	Duplicates uint64 `json:"duplicates"`
	Crashes    int    `json:"crashes"`
	Recoveries int    `json:"recoveries"`
}

// Result はシナリオ実行結果
type Result struct {
	RunID        string        `json:"run_id"`
	ScenarioName string        `json:"scenario"`
	Seed         uint64        `json:"seed"`
	Workers      int           `json:"workers"`
	Nodes        int           `json:"nodes"`
	Rounds       int           `json:"rounds"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration"`
	Profile      fault.Profile `json:"profile"`

	// メッセージ統計
	Messages MessageStats  `json:"messages"`
	Rates    metrics.Rates `json:"rates"`
	Expected [3]float64    `json:"expected_distribution"`

	// クラッシュ統計
	CrashDraws      uint64 `json:"crash_draws"`
	Crashes         uint64 `json:"crashes"`
	CrashSuppressed uint64 `json:"crash_suppressed"`

	// 復旧統計
	RecoveryDraws uint64  `json:"recovery_draws"`
	Recoveries    uint64  `json:"recoveries"`
	MeanDowntime  float64 `json:"mean_downtime_rounds"`

	// ノード状態
	FinalNodeStatus map[string]string    `json:"final_node_status"`
	NodeStats       map[string]NodeStats `json:"node_stats"`
}

// Engine はシナリオ実行エンジン
type Engine struct {
	config   Config
	eventBus *events.Bus

	cluster   *cluster.Cluster
	metrics   *metrics.Metrics
	network   *network.Network
	generator *traffic.Generator
	monkey    *chaos.Monkey
	recovery  *recovery.Manager
	pool      *worker.Pool

	round atomic.Int64

	mu      sync.RWMutex
	running bool
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	return &Engine{
		config: config,
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// publishEvent はイベントを発行する
func (e *Engine) publishEvent(event events.Event) {
	if e.eventBus != nil {
		e.eventBus.Publish(event)
	}
}

// Run はシナリオを実行する。
// コンテキストが途中でキャンセルされた場合は、それまでの結果とエラーを返す。
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	if err := e.config.Validate(); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("scenario %q: %w", e.config.Name, err)
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	runID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "scenario.Run", trace.WithAttributes(
		attribute.String("scenario.name", e.config.Name),
		attribute.String("scenario.run_id", runID),
		attribute.Int64("scenario.seed", int64(e.config.Seed)),
		attribute.Int("scenario.nodes", e.config.NodeCount),
		attribute.Int("scenario.workers", e.config.Workers),
		attribute.Int("scenario.rounds", e.config.Rounds),
	))
	defer span.End()

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	logger.Info("", "=== Scenario '%s' started (run %s, seed %d) ===", e.config.Name, runID, e.config.Seed)
	logger.Info("", "Description: %s", e.config.Description)

	result := &Result{
		RunID:        runID,
		ScenarioName: e.config.Name,
		Seed:         e.config.Seed,
		Workers:      e.config.Workers,
		Nodes:        e.config.NodeCount,
		Profile:      e.config.Profile,
		Expected:     e.config.Profile.ExpectedDistribution(),
		StartTime:    time.Now(),
	}

	// セットアップ
	if err := e.setup(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("setup failed: %w", err)
	}

	e.pool.Start(ctx)
	runErr := e.runRounds(ctx)
	e.pool.Stop()

	// 結果収集
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Rounds = int(e.round.Load())
	e.collectResults(result)

	span.SetAttributes(
		attribute.Int("scenario.rounds_completed", result.Rounds),
		attribute.Int64("scenario.messages", int64(result.Messages.Attempted)),
		attribute.Int64("scenario.crashes", int64(result.Crashes)),
	)
	e.publishEvent(events.NewScenarioCompleteEvent(runID, e.config.Name, runErr))

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		logger.Warn("", "=== Scenario '%s' interrupted after %d rounds: %v ===", e.config.Name, result.Rounds, runErr)
		return result, fmt.Errorf("scenario %q interrupted at round %d: %w", e.config.Name, result.Rounds, runErr)
	}

	logger.Info("", "=== Scenario '%s' completed ===", e.config.Name)
	return result, nil
}

// setup はシナリオ実行前のセットアップ。
// 2回目以降の実行では既存のクラスタを初期状態に戻して使い回す。
func (e *Engine) setup(ctx context.Context) error {
	e.mu.RLock()
	c := e.cluster
	e.mu.RUnlock()

	if c != nil && c.Size() == e.config.NodeCount {
		if err := c.ResetAll(ctx); err != nil {
			return err
		}
	} else {
		c = cluster.New()
		if err := c.CreateNodes(e.config.NodeCount, "node"); err != nil {
			return fmt.Errorf("failed to create nodes: %w", err)
		}
	}

	pool, err := worker.NewPool(worker.PoolConfig{
		NumWorkers: e.config.Workers,
		QueueSize:  e.config.NodeCount,
		Seed:       e.config.Seed,
		Profile:    e.config.Profile,
	})
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}

	m := metrics.New()
	nw := network.New(c, m)
	nw.SetEventBus(e.eventBus)

	var monkey *chaos.Monkey
	if e.config.EnableCrashes {
		monkey = chaos.New(c, chaos.Config{MaxFailedNodes: e.config.MaxFailedNodes})
		monkey.SetMetrics(m)
		monkey.SetEventBus(e.eventBus)
	}

	var rec *recovery.Manager
	if e.config.EnableRecovery {
		rec = recovery.New(c, recovery.Config{MinDownRounds: e.config.MinDownRounds})
		rec.SetMetrics(m)
		rec.SetEventBus(e.eventBus)
	}

	e.mu.Lock()
	e.cluster = c
	e.metrics = m
	e.network = nw
	e.generator = traffic.New(e.config.Traffic)
	e.monkey = monkey
	e.recovery = rec
	e.pool = pool
	e.mu.Unlock()

	e.round.Store(0)
	return nil
}

// runRounds は全ラウンドを順に実行する
func (e *Engine) runRounds(ctx context.Context) error {
	for round := 1; round <= e.config.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.runRound(ctx, round); err != nil {
			return err
		}
		e.round.Store(int64(round))
	}
	return nil
}

// runRound は1ラウンドを実行する。
// ノードごとのジョブを担当ワーカーに投入し、全ジョブの完了後に状態変化を適用する。
func (e *Engine) runRound(ctx context.Context, round int) error {
	start := time.Now()
	nodes := e.cluster.Nodes()
	peers := e.cluster.IDs()

	var wg sync.WaitGroup
	for i, n := range nodes {
		wg.Add(1)
		job := func(inj *fault.Injector) {
			defer wg.Done()
			e.step(n, inj, round, peers)
		}
		// キューに空きがあればブロックせずに投入する
		if !e.pool.Submit(i, job) && !e.pool.SubmitWait(i, job) {
			wg.Done()
			wg.Wait()
			e.discardRound(round)
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("worker pool rejected job for %s", n.ID())
		}
	}
	wg.Wait()

	// 全ジョブの完了前にキャンセルされたラウンドは確定しない
	if err := ctx.Err(); err != nil {
		e.discardRound(round)
		return err
	}

	// バリア: クラッシュ、復旧、配送の順に適用する
	if e.monkey != nil {
		e.monkey.Apply(round)
	}
	if e.recovery != nil {
		e.recovery.Apply(round)
	}
	e.network.Flush()

	metrics.ObserveRound(time.Since(start))
	return nil
}

// discardRound は途中で中断されたラウンドの保留中の判定をすべて破棄する
func (e *Engine) discardRound(round int) {
	sends := e.network.Discard()
	var crashes, recoveries int
	if e.monkey != nil {
		crashes = e.monkey.Discard()
	}
	if e.recovery != nil {
		recoveries = e.recovery.Discard()
	}
	logger.Debug("", "Round %d discarded (%d sends, %d crash and %d recovery proposals)", round, sends, crashes, recoveries)
}

// step はワーカー上でノード1つ分の判定を行う
func (e *Engine) step(n *node.Node, inj *fault.Injector, round int, peers []string) {
	switch n.Status() {
	case node.StatusLive:
		if e.monkey != nil {
			e.monkey.Propose(n, inj)
		}
		for _, msg := range e.generator.Messages(round, n.ID(), peers) {
			e.network.Send(msg, inj)
		}
	case node.StatusFailed:
		if e.recovery != nil {
			e.recovery.Propose(n, inj, round)
		}
	}
}

// collectResults は結果を収集する
func (e *Engine) collectResults(result *Result) {
	snapshot := e.metrics.Snapshot()
	result.Messages = MessageStats{
		Attempted:     snapshot.MessagesAttempted,
		Lost:          snapshot.MessagesLost,
		Delivered:     snapshot.MessagesDelivered,
		Duplicated:    snapshot.MessagesDuplicated,
		Copies:        snapshot.CopiesDelivered,
		Undeliverable: snapshot.CopiesUndeliverable,
	}
	result.Rates = snapshot.Rates

	// クラッシュ統計
	if e.monkey != nil {
		stats := e.monkey.Stats()
		result.CrashDraws = stats.Draws
		result.Crashes = stats.Crashes
		result.CrashSuppressed = stats.Suppressed
	}

	// 復旧統計
	if e.recovery != nil {
		stats := e.recovery.Stats()
		result.RecoveryDraws = stats.Draws
		result.Recoveries = stats.Recoveries
		result.MeanDowntime = stats.MeanDowntime()
	}

	// ノード状態
	result.FinalNodeStatus = make(map[string]string)
	result.NodeStats = make(map[string]NodeStats)
	for _, n := range e.cluster.Nodes() {
		result.FinalNodeStatus[n.ID()] = n.Status().String()
		result.NodeStats[n.ID()] = NodeStats{
			Status:     n.Status().String(),
			Received:   n.Received(),
			Duplicates: n.Duplicates(),
			Crashes:    n.Crashes(),
			Recoveries: n.Recoveries(),
		}
	}
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	report := fmt.Sprintf(`
================================================================================
                         SCENARIO REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Run ID:         %s
  Seed:           %d
  Nodes:          %d
  Workers:        %d
  Rounds:         %d
  Start Time:     %s
  End Time:       %s
  Duration:       %v

MESSAGE DECISIONS
-----------------
  Attempted:        %d
  Lost:             %d  (%.2f%%, expected %.2f%%)
  Delivered once:   %d  (%.2f%%, expected %.2f%%)
  Duplicated:       %d  (%.2f%%, expected %.2f%%)
  Copies delivered: %d
  Undeliverable:    %d

CRASH STATISTICS
----------------
  Draws:            %d
  Crashes:          %d
  Suppressed:       %d
  Fail Rate:        %.2f%%

RECOVERY STATISTICS
-------------------
  Draws:            %d
  Recoveries:       %d
  Recover Rate:     %.2f%%
  Mean Downtime:    %.2f rounds

FINAL NODE STATUS
-----------------
`,
		r.ScenarioName,
		r.RunID,
		r.Seed,
		r.Nodes,
		r.Workers,
		r.Rounds,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.Messages.Attempted,
		r.Messages.Lost, r.Rates.Lost*100, r.Expected[fault.Lost]*100,
		r.Messages.Delivered, r.Rates.Delivered*100, r.Expected[fault.Delivered]*100,
		r.Messages.Duplicated, r.Rates.Duplicated*100, r.Expected[fault.Duplicated]*100,
		r.Messages.Copies,
		r.Messages.Undeliverable,
		r.CrashDraws,
		r.Crashes,
		r.CrashSuppressed,
		r.Rates.NodeFail*100,
		r.RecoveryDraws,
		r.Recoveries,
		r.Rates.NodeRecover*100,
		r.MeanDowntime,
	)

	for _, nodeID := range slices.Sorted(maps.Keys(r.NodeStats)) {
		s := r.NodeStats[nodeID]
		report += fmt.Sprintf("  %-20s %-7s received=%d duplicates=%d crashes=%d recoveries=%d\n",
			nodeID+":", s.Status, s.Received, s.Duplicates, s.Crashes, s.Recoveries)
	}

	report += "\n================================================================================"

	return report
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Config は設定を返す
func (e *Engine) Config() Config {
	return e.config
}

// Round は完了したラウンド数を返す
func (e *Engine) Round() int {
	return int(e.round.Load())
}

// ChaosStats はクラッシュ統計を返す
func (e *Engine) ChaosStats() *chaos.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.monkey == nil {
		return nil
	}
	stats := e.monkey.Stats()
	return &stats
}

// RecoveryStats は復旧統計を返す
func (e *Engine) RecoveryStats() *recovery.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.recovery == nil {
		return nil
	}
	stats := e.recovery.Stats()
	return &stats
}

// Metrics はメトリクスのスナップショットを返す
func (e *Engine) Metrics() *metrics.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.metrics == nil {
		return nil
	}
	snapshot := e.metrics.Snapshot()
	return &snapshot
}

// Cluster はクラスタを返す
func (e *Engine) Cluster() *cluster.Cluster {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cluster
}
