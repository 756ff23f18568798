package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"faultsim/internal/fault"
	"faultsim/internal/logger"
)

// Job はワーカーが自分専用のインジェクタで実行するジョブを表す
type Job func(inj *fault.Injector)

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	NumWorkers int           // ワーカー数（0でCPU数）
	QueueSize  int           // ワーカーごとのキューサイズ
	Seed       uint64        // 各ワーカーの乱数列を導出するベースシード
	Profile    fault.Profile // 全ワーカー共通の信頼性プロファイル
}

// DefaultPoolConfig はデフォルト設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers: 0,   // CPU数
		QueueSize:  100, // デフォルトのキュー長
		Seed:       1,
		Profile:    fault.DefaultProfile(),
	}
}

// worker はシャード1つ分の状態（専用の乱数列とキュー）
type worker struct {
	id        int
	seed      uint64
	inj       *fault.Injector
	jobs      chan Job
	processed atomic.Uint64
}

// Pool はシャード化されたゴルーチンのプールを管理する。
// 同じシャードに投入されたジョブは投入順に同じワーカーで実行される。
type Pool struct {
	workers   []*worker
	queueSize int
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	mu      sync.RWMutex
	running bool
}

// NewPool は新しいワーカープールを作成する。
// プロファイルが不正な場合はエラーを返す。
func NewPool(config PoolConfig) (*Pool, error) {
	numWorkers := config.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}

	workers := make([]*worker, numWorkers)
	for i := range numWorkers {
		seed := fault.DeriveSeed(config.Seed, i)
		inj, err := fault.New(config.Profile, fault.NewSource(seed))
		if err != nil {
			return nil, fmt.Errorf("worker %d: %w", i, err)
		}
		workers[i] = &worker{id: i, seed: seed, inj: inj}
	}

	return &Pool{
		workers:   workers,
		queueSize: queueSize,
	}, nil
}

// Start はワーカープールを起動する
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	for _, w := range p.workers {
		w.jobs = make(chan Job, p.queueSize)
		p.wg.Add(1)
		go p.run(w)
	}

	logger.Debug("", "WorkerPool started with %d workers", len(p.workers))
}

// run は個々のワーカーゴルーチン。キューが閉じられるまで残りのジョブも実行する
func (p *Pool) run(w *worker) {
	defer p.wg.Done()

	for job := range w.jobs {
		job(w.inj)
		w.processed.Add(1)
	}
}

// Submit はジョブをシャードに送信する（キューが満杯なら false）
func (p *Pool) Submit(shard int, job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running || p.ctx.Err() != nil {
		return false
	}

	select {
	case p.shard(shard).jobs <- job:
		return true
	default:
		return false
	}
}

// SubmitWait はジョブを送信し、キューに空きがなければブロックする
func (p *Pool) SubmitWait(shard int, job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running || p.ctx.Err() != nil {
		return false
	}

	select {
	case <-p.ctx.Done():
		return false
	case p.shard(shard).jobs <- job:
		return true
	}
}

func (p *Pool) shard(i int) *worker {
	if i < 0 {
		i = -i
	}
	return p.workers[i%len(p.workers)]
}

// Stop はワーカープールを停止し、投入済みのジョブの完了を待つ
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	for _, w := range p.workers {
		close(w.jobs)
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()

	logger.Debug("", "WorkerPool stopped")
}

// NumWorkers はワーカー数を返す
func (p *Pool) NumWorkers() int {
	return len(p.workers)
}

// QueueSize は全ワーカーのキューに残っているジョブ数を返す
func (p *Pool) QueueSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	total := 0
	for _, w := range p.workers {
		total += len(w.jobs)
	}
	return total
}

// Seed はワーカー i の乱数シードを返す
func (p *Pool) Seed(i int) uint64 {
	return p.shard(i).seed
}

// Processed はワーカー i が実行したジョブ数を返す
func (p *Pool) Processed(i int) uint64 {
	return p.shard(i).processed.Load()
}
