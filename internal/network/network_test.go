package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faultsim/internal/cluster"
	"faultsim/internal/events"
	"faultsim/internal/fault"
	"faultsim/internal/metrics"
	"faultsim/internal/node"
)

type fixedDecider int

func (f fixedDecider) DecideDuplicationCount() int { return int(f) }

func newCluster(t *testing.T, n int) *cluster.Cluster {
	t.Helper()
	c := cluster.New()
	require.NoError(t, c.CreateNodes(n, "node"))
	return c
}

func msg(from, to, id string) node.Message {
	return node.Message{ID: id, From: from, To: to, Round: 1}
}

func TestSendQueuesCopies(t *testing.T) {
	c := newCluster(t, 2)
	m := metrics.New()
	nw := New(c, m)

	assert.Equal(t, 0, nw.Send(msg("node-1", "node-2", "a"), fixedDecider(fault.Lost)))
	assert.Equal(t, 1, nw.Send(msg("node-1", "node-2", "b"), fixedDecider(fault.Delivered)))
	assert.Equal(t, 2, nw.Send(msg("node-1", "node-2", "c"), fixedDecider(fault.Duplicated)))
	assert.Equal(t, uint64(0), m.Snapshot().MessagesAttempted, "decisions are not recorded before Flush")

	res := nw.Flush()
	assert.Equal(t, FlushResult{Sent: 3, Delivered: 3}, res)
	assert.Equal(t, FlushResult{}, nw.Flush(), "a flush empties the queue")

	dst, _ := c.GetNode("node-2")
	assert.Equal(t, uint64(3), dst.Received())
	assert.Equal(t, uint64(1), dst.Duplicates())

	snap := m.Snapshot()
	assert.Equal(t, uint64(3), snap.MessagesAttempted)
	assert.Equal(t, uint64(1), snap.MessagesLost)
	assert.Equal(t, uint64(1), snap.MessagesDuplicated)
	assert.Equal(t, uint64(3), snap.CopiesDelivered)
}

func TestFlushToFailedNode(t *testing.T) {
	c := newCluster(t, 2)
	m := metrics.New()
	nw := New(c, m)

	nw.Send(msg("node-1", "node-2", "a"), fixedDecider(fault.Duplicated))
	dst, _ := c.GetNode("node-2")
	require.NoError(t, dst.Crash(1))

	res := nw.Flush()
	assert.Equal(t, 0, res.Delivered)
	assert.Equal(t, 2, res.Undeliverable)
	assert.Equal(t, uint64(2), m.Snapshot().CopiesUndeliverable)
}

func TestFlushToUnknownNode(t *testing.T) {
	nw := New(newCluster(t, 1), nil)

	nw.Send(msg("node-1", "node-9", "a"), fixedDecider(fault.Delivered))
	assert.Equal(t, FlushResult{Sent: 1, Undeliverable: 1}, nw.Flush())
}

func TestFlushOrderIsDeterministic(t *testing.T) {
	c := newCluster(t, 3)
	nw := New(c, nil)

	nw.Send(msg("node-3", "node-1", "z"), fixedDecider(fault.Delivered))
	nw.Send(msg("node-2", "node-1", "y"), fixedDecider(fault.Duplicated))
	nw.Send(msg("node-2", "node-1", "x"), fixedDecider(fault.Delivered))
	nw.Flush()

	dst, _ := c.GetNode("node-1")
	var ids []string
	for _, m := range dst.Inbox() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"x", "y", "y", "z"}, ids)
}

func TestSendPublishesEvents(t *testing.T) {
	nw := New(newCluster(t, 2), nil)
	bus := events.NewBus()
	nw.SetEventBus(bus)
	ch := bus.Subscribe()

	nw.Send(msg("node-1", "node-2", "a"), fixedDecider(fault.Lost))
	nw.Send(msg("node-1", "node-2", "b"), fixedDecider(fault.Delivered))
	nw.Send(msg("node-1", "node-2", "c"), fixedDecider(fault.Duplicated))
	assert.Len(t, ch, 0, "events are published on Flush")
	nw.Flush()

	var got []events.EventType
	for range 2 {
		select {
		case e := <-ch:
			got = append(got, e.Type)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for event")
		}
	}
	assert.Equal(t, []events.EventType{events.EventMessageLost, events.EventMessageDuplicated}, got)
	assert.Len(t, ch, 0)
}

func TestSendWithInjector(t *testing.T) {
	profile := fault.DefaultProfile()
	profile.NetworkReliable = true
	profile.MessageDuplication = false
	inj, err := fault.New(profile, fault.NewSource(1))
	require.NoError(t, err)

	nw := New(newCluster(t, 2), nil)
	for range 100 {
		assert.Equal(t, fault.Delivered, nw.Send(msg("node-1", "node-2", "a"), inj))
	}
	assert.Equal(t, FlushResult{Sent: 100, Delivered: 100}, nw.Flush())
}

func TestDiscardDropsWithoutRecording(t *testing.T) {
	c := newCluster(t, 2)
	m := metrics.New()
	nw := New(c, m)
	bus := events.NewBus()
	nw.SetEventBus(bus)
	ch := bus.Subscribe()

	nw.Send(msg("node-1", "node-2", "a"), fixedDecider(fault.Lost))
	nw.Send(msg("node-1", "node-2", "b"), fixedDecider(fault.Duplicated))

	assert.Equal(t, 2, nw.Discard())
	assert.Equal(t, FlushResult{}, nw.Flush())

	snap := m.Snapshot()
	assert.Equal(t, uint64(0), snap.MessagesAttempted)
	assert.Equal(t, uint64(0), snap.CopiesDelivered)
	assert.Len(t, ch, 0)

	dst, _ := c.GetNode("node-2")
	assert.Equal(t, uint64(0), dst.Received())
}
