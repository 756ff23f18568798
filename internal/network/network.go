package network

import (
	"cmp"
	"errors"
	"slices"
	"sync"

	"faultsim/internal/cluster"
	"faultsim/internal/events"
	"faultsim/internal/fault"
	"faultsim/internal/logger"
	"faultsim/internal/metrics"
	"faultsim/internal/node"
)

// Decider は送信メッセージの配送コピー数を決める（*fault.Injector が満たす）
type Decider interface {
	DecideDuplicationCount() int
}

var _ Decider = (*fault.Injector)(nil)

// outbound は送信1件分の判定結果
type outbound struct {
	msg   node.Message
	count int
}

// FlushResult は1回の Flush の集計
type FlushResult struct {
	Sent          int
	Delivered     int
	Undeliverable int
}

// Network はラウンド中の送信を溜め、バリアでまとめて配送する
type Network struct {
	cluster  *cluster.Cluster
	metrics  *metrics.Metrics
	eventBus *events.Bus

	mu      sync.Mutex
	pending []outbound
}

// New はクラスタ上のネットワークを作成する（m は nil 可）
func New(c *cluster.Cluster, m *metrics.Metrics) *Network {
	return &Network{
		cluster: c,
		metrics: m,
	}
}

// SetEventBus はイベントバスを設定する
func (nw *Network) SetEventBus(bus *events.Bus) {
	nw.eventBus = bus
}

func (nw *Network) publishEvent(event events.Event) {
	if nw.eventBus != nil {
		nw.eventBus.Publish(event)
	}
}

// Send は d にコピー数を判定させ、結果を次の Flush まで保留する。
// 戻り値は重複カウント（0 はロスト）。メトリクスとイベントは Flush 時に確定する。
func (nw *Network) Send(msg node.Message, d Decider) int {
	count := d.DecideDuplicationCount()

	nw.mu.Lock()
	nw.pending = append(nw.pending, outbound{msg: msg, count: count})
	nw.mu.Unlock()

	return count
}

// Flush は保留中の送信を (From, ID, コピー番号) 順に確定・配送する。
// 停止中または存在しない宛先へのコピーは配送不能として数える。
func (nw *Network) Flush() FlushResult {
	nw.mu.Lock()
	batch := nw.pending
	nw.pending = nil
	nw.mu.Unlock()

	slices.SortStableFunc(batch, func(a, b outbound) int {
		return cmp.Or(
			cmp.Compare(a.msg.From, b.msg.From),
			cmp.Compare(a.msg.ID, b.msg.ID),
		)
	})

	res := FlushResult{Sent: len(batch)}
	for _, out := range batch {
		nw.commit(out)
		for range out.count {
			delivered := nw.deliver(out.msg)
			if delivered {
				res.Delivered++
			} else {
				res.Undeliverable++
			}
			if nw.metrics != nil {
				nw.metrics.RecordCopy(delivered)
			}
		}
	}
	return res
}

// commit は送信1件の判定をメトリクスとイベントに反映する
func (nw *Network) commit(out outbound) {
	if nw.metrics != nil {
		nw.metrics.RecordDuplication(out.count)
	}

	msg := out.msg
	switch out.count {
	case fault.Lost:
		nw.publishEvent(events.NewMessageLostEvent(msg.From, msg.To, msg.ID, msg.Round))
	case fault.Duplicated:
		nw.publishEvent(events.NewMessageDuplicatedEvent(msg.From, msg.To, msg.ID, msg.Round, out.count))
	}
}

func (nw *Network) deliver(msg node.Message) bool {
	dst, ok := nw.cluster.GetNode(msg.To)
	if !ok {
		logger.Warn(msg.From, "Dropping %s: unknown destination %s", msg.ID, msg.To)
		return false
	}

	if err := dst.Deliver(msg); err != nil {
		if !errors.Is(err, node.ErrNodeFailed) {
			logger.Error(msg.To, "Delivery failed: %v", err)
		}
		return false
	}
	return true
}

// Discard は保留中の送信を確定せずに破棄し、破棄した送信数を返す
func (nw *Network) Discard() int {
	nw.mu.Lock()
	defer nw.mu.Unlock()

	n := len(nw.pending)
	nw.pending = nil
	return n
}
