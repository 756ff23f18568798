package node

import (
	"errors"
	"fmt"
	"sync"

	"faultsim/internal/logger"
)

// ErrNodeFailed はクラッシュ中のノードへの配送で返される
var ErrNodeFailed = errors.New("node is failed")

// InboxLimit は受信箱に保持する直近メッセージの上限
const InboxLimit = 256

// Status はノードの状態を表す
type Status int

const (
	StatusLive Status = iota
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLive:
		return "live"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Message はノード間でやり取りされるメッセージ
type Message struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Round   int    `json:"round"`
	Payload []byte `json:"payload,omitempty"`
}

// Node はシミュレーション上の単一ノードを表す
type Node struct {
	id          string
	status      Status
	failedSince int

	mu         sync.RWMutex
	inbox      []Message
	seen       map[string]int // 現在のラウンドで受信したメッセージIDのみ保持
	seenRound  int
	received   uint64
	duplicates uint64
	crashes    int
	recoveries int
}

// New は新しいノードを作成する（初期状態は Live）
func New(id string) *Node {
	return &Node{
		id:     id,
		status: StatusLive,
		seen:   make(map[string]int),
	}
}

// ID はノードIDを返す
func (n *Node) ID() string {
	return n.id
}

// Status はノードの現在のステータスを返す
func (n *Node) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// Crash はノードを Failed に遷移させる
func (n *Node) Crash(round int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.status == StatusFailed {
		return fmt.Errorf("node %s is already failed", n.id)
	}

	n.status = StatusFailed
	n.failedSince = round
	n.crashes++

	logger.Debug(n.id, "Node crashed in round %d", round)
	return nil
}

// Recover は Failed のノードを Live に戻す
func (n *Node) Recover(round int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.status != StatusFailed {
		return fmt.Errorf("node %s is not failed", n.id)
	}

	n.status = StatusLive
	n.recoveries++

	logger.Debug(n.id, "Node recovered in round %d (down %d rounds)", round, round-n.failedSince)
	return nil
}

// FailedSince はクラッシュしたラウンドを返す
func (n *Node) FailedSince() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.failedSince
}

// Deliver はメッセージを受信箱に追加する。
// 重複判定は同一ラウンド内に限られ、受信箱は直近 InboxLimit 件だけ保持する。
func (n *Node) Deliver(msg Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.status != StatusLive {
		return fmt.Errorf("deliver %s to %s: %w", msg.ID, n.id, ErrNodeFailed)
	}

	// メッセージIDはラウンドを含むので、ラウンドが変われば過去のIDは不要
	if msg.Round != n.seenRound {
		clear(n.seen)
		n.seenRound = msg.Round
	}

	n.seen[msg.ID]++
	if n.seen[msg.ID] > 1 {
		n.duplicates++
	}
	n.received++

	if len(n.inbox) >= InboxLimit {
		copy(n.inbox, n.inbox[1:])
		n.inbox = n.inbox[:InboxLimit-1]
	}
	n.inbox = append(n.inbox, msg)
	return nil
}

// Inbox は直近に受信したメッセージのコピーを返す（古い順）
func (n *Node) Inbox() []Message {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]Message, len(n.inbox))
	copy(out, n.inbox)
	return out
}

// Received は受信したコピーの総数を返す
func (n *Node) Received() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.received
}

// Duplicates は重複して受信したコピー数を返す
func (n *Node) Duplicates() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.duplicates
}

// Crashes はクラッシュ回数を返す
func (n *Node) Crashes() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.crashes
}

// Recoveries は復旧回数を返す
func (n *Node) Recoveries() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.recoveries
}

// Reset はノードを初期状態に戻す
func (n *Node) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.status = StatusLive
	n.failedSince = 0
	n.inbox = nil
	n.seen = make(map[string]int)
	n.seenRound = 0
	n.received = 0
	n.duplicates = 0
	n.crashes = 0
	n.recoveries = 0
}
