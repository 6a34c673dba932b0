package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStats_ChildRollsUp(t *testing.T) {
	root := New("stats_test_rollup")
	a := root.Child("hash0of2")
	b := root.Child("hash1of2")

	a.AddProcessed(3)
	b.AddProcessed(4)
	a.AddRetrieved(2)
	b.AddDropped(1)
	a.AddSubscriptions(5)
	b.AddSubscriptions(2)
	a.AddSubscriptions(-1)
	b.IncNotifications()

	assert.Equal(t, Snapshot{Processed: 3, Retrieved: 2, Subscriptions: 4}, a.Snapshot())
	assert.Equal(t, Snapshot{Processed: 4, Dropped: 1, Subscriptions: 2, Notifications: 1}, b.Snapshot())
	assert.Equal(t, Snapshot{Processed: 7, Retrieved: 2, Dropped: 1, Subscriptions: 6, Notifications: 1}, root.Snapshot())

	assert.Equal(t, "stats_test_rollup", a.Collector())
	assert.Equal(t, "hash0of2", a.Shard())
	assert.Equal(t, RootShard, root.Shard())
}

func TestStats_ChildIsCached(t *testing.T) {
	root := New("stats_test_cached")

	var wg sync.WaitGroup
	children := make([]*Stats, 8)
	for i := range children {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			children[i] = root.Child("range--A-")
		}(i)
	}
	wg.Wait()

	for _, c := range children {
		assert.Same(t, children[0], c)
	}
}

func TestStats_Nil(t *testing.T) {
	var s *Stats

	assert.NotPanics(t, func() {
		s.AddProcessed(1)
		s.AddRetrieved(1)
		s.AddDropped(1)
		s.AddSubscriptions(1)
		s.IncNotifications()
	})
	assert.Nil(t, s.Child("x"))
	assert.Equal(t, Snapshot{}, s.Snapshot())
	assert.Equal(t, "", s.Collector())
}
