package cluster

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"faultsim/internal/logger"
	"faultsim/internal/node"
)

// Manager はクラスタ管理の基本操作を定義するインターフェース
type Manager interface {
	AddNode(n *node.Node) error
	RemoveNode(nodeID string) error
	GetNode(nodeID string) (*node.Node, bool)
	Nodes() []*node.Node
	Size() int
	LiveCount() int
	FailedCount() int
}

// Ensure Cluster implements Manager
var _ Manager = (*Cluster)(nil)

// Cluster は複数のノードを追加順に管理する
type Cluster struct {
	mu    sync.RWMutex
	nodes map[string]*node.Node
	order []string
}

// New は新しいクラスタを作成する
func New() *Cluster {
	return &Cluster{
		nodes: make(map[string]*node.Node),
	}
}

// AddNode はクラスタにノードを追加する
func (c *Cluster) AddNode(n *node.Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.nodes[n.ID()]; exists {
		return fmt.Errorf("node %s already exists in cluster", n.ID())
	}

	c.nodes[n.ID()] = n
	c.order = append(c.order, n.ID())
	logger.Debug("", "Node %s added to cluster", n.ID())
	return nil
}

// RemoveNode はクラスタからノードを削除する
func (c *Cluster) RemoveNode(nodeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.nodes[nodeID]; !exists {
		return fmt.Errorf("node %s not found in cluster", nodeID)
	}

	delete(c.nodes, nodeID)
	for i, id := range c.order {
		if id == nodeID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	logger.Debug("", "Node %s removed from cluster", nodeID)
	return nil
}

// GetNode はノードIDでノードを取得する
func (c *Cluster) GetNode(nodeID string) (*node.Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, exists := c.nodes[nodeID]
	return n, exists
}

// Nodes は全てのノードを追加順で返す
func (c *Cluster) Nodes() []*node.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()

	nodes := make([]*node.Node, 0, len(c.order))
	for _, id := range c.order {
		nodes = append(nodes, c.nodes[id])
	}
	return nodes
}

// IDs は全てのノードIDを追加順で返す
func (c *Cluster) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, len(c.order))
	copy(ids, c.order)
	return ids
}

// Size はクラスタ内のノード数を返す
func (c *Cluster) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}

// LiveCount は稼働中のノード数を返す
func (c *Cluster) LiveCount() int {
	return c.countStatus(node.StatusLive)
}

// FailedCount は停止中のノード数を返す
func (c *Cluster) FailedCount() int {
	return c.countStatus(node.StatusFailed)
}

func (c *Cluster) countStatus(status node.Status) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for _, n := range c.nodes {
		if n.Status() == status {
			count++
		}
	}
	return count
}

// ResetAll は全ノードを並列に初期状態へ戻す
func (c *Cluster) ResetAll(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	for _, n := range c.Nodes() {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			n.Reset()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to reset cluster: %w", err)
	}
	logger.Debug("", "All nodes reset (count: %d)", c.Size())
	return nil
}

// CreateNodes は指定された数のノードを作成してクラスタに追加する
func (c *Cluster) CreateNodes(count int, prefix string) error {
	logger.Debug("", "Creating %d nodes with prefix '%s'", count, prefix)

	for i := range count {
		nodeID := fmt.Sprintf("%s-%d", prefix, i+1)
		if err := c.AddNode(node.New(nodeID)); err != nil {
			return err
		}
	}

	logger.Info("", "Created %d nodes", count)
	return nil
}
