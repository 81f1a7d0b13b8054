package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagscope/pkg/model"
)

func openTestCache(t *testing.T, limit int) *Cache {
	t.Helper()
	c, err := Open(":memory:", limit, nil)
	require.NoError(t, err)
	return c
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	c := openTestCache(t, 10)
	sid := model.SessionID("s1")

	ev := &model.FiringEvent{
		ID:        uuid.NewString(),
		Type:      model.EventView,
		Timestamp: time.Now(),
		Payload:   map[string]any{"page_name": "home"},
		PreDataLayer: map[string]any{
			"huge": "snapshot",
		},
		FiredTagIDs: []int{4, 12},
	}
	c.Save(sid, ev)

	got := c.LoadRecent(sid, 0)
	require.Len(t, got, 1)
	assert.Equal(t, ev.ID, got[0].ID)
	assert.Equal(t, []int{4, 12}, got[0].FiredTagIDs)
	// 数据层快照入库前剥除
	assert.Nil(t, got[0].PreDataLayer)
	assert.Nil(t, got[0].PostDataLayer)

	// 会话隔离
	assert.Empty(t, c.LoadRecent(model.SessionID("other"), 0))
}

func TestPruneKeepsNewest(t *testing.T) {
	c := openTestCache(t, 3)
	sid := model.SessionID("s1")

	base := time.Now()
	for i := 0; i < 6; i++ {
		c.Save(sid, &model.FiringEvent{
			ID:        uuid.NewString(),
			Type:      model.EventView,
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Payload:   map[string]any{"seq": fmt.Sprintf("%d", i)},
		})
	}

	got := c.LoadRecent(sid, 0)
	require.Len(t, got, 3)
	// 正序返回，且只剩最新三条
	assert.Equal(t, "3", got[0].Payload["seq"])
	assert.Equal(t, "5", got[2].Payload["seq"])
}

func TestNilCacheSafe(t *testing.T) {
	var c *Cache
	assert.NotPanics(t, func() {
		c.Save("s", &model.FiringEvent{ID: "x"})
		c.Evict()
	})
	assert.Nil(t, c.LoadRecent("s", 0))
}
