package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagscope/pkg/host"
	"tagscope/pkg/model"
)

func fastTunables() model.Tunables {
	return model.Tunables{
		PostSnapshotDelay: time.Millisecond,
		ConfirmDelay:      time.Millisecond,
		RefreshThrottle:   time.Millisecond,
	}
}

func TestSessionLifecycle(t *testing.T) {
	svc := New(nil)
	id, err := svc.StartSession(model.SessionConfig{PageHost: "shop.example.com"}, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, string(id))
	assert.Equal(t, []model.SessionID{id}, svc.Sessions())

	rt, err := svc.Runtime(id)
	require.NoError(t, err)
	assert.NotNil(t, rt)
	stack, err := svc.Stack(id)
	require.NoError(t, err)
	assert.NotNil(t, stack)

	require.NoError(t, svc.StopSession(id))
	assert.Empty(t, svc.Sessions())
	assert.Error(t, svc.StopSession(id))

	_, err = svc.Requests(id)
	assert.Error(t, err)
}

func TestFireViewProducesEvent(t *testing.T) {
	svc := New(nil)
	rt := host.NewScripted()
	rt.SetData("page_name", "home")
	id, err := svc.StartSession(model.SessionConfig{
		PageHost: "shop.example.com",
		Tunables: fastTunables(),
	}, rt, nil)
	require.NoError(t, err)
	defer svc.StopSession(id)

	require.NoError(t, svc.FireView(id, map[string]any{"page_name": "cart"}))

	deadline := time.Now().Add(time.Second)
	var evs []model.FiringEvent
	for {
		evs, err = svc.Events(id)
		require.NoError(t, err)
		if len(evs) > 0 {
			break
		}
		require.True(t, time.Now().Before(deadline), "事件未在期限内入库")
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, model.EventView, evs[0].Type)
	assert.Equal(t, "home", evs[0].PreDataLayer["page_name"])
	assert.Equal(t, []string{"view"}, rt.Calls)
}

func TestIngestClassifiesAtEntry(t *testing.T) {
	svc := New(nil)
	id, err := svc.StartSession(model.SessionConfig{
		PageHost: "shop.example.com",
		Tunables: fastTunables(),
	}, nil, nil)
	require.NoError(t, err)
	defer svc.StopSession(id)

	err = svc.Ingest(id, model.NetworkRecord{
		Transport: model.TransportFetch,
		Method:    "GET",
		URL:       "https://www.google-analytics.com/g/collect?v=2&tid=G-1",
	})
	require.NoError(t, err)

	recs, err := svc.Requests(id)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].External)
	assert.True(t, recs[0].TagRelated)
	assert.Equal(t, "Google", recs[0].Vendor)

	ps, err := svc.Parameters(id, recs[0].ID)
	require.NoError(t, err)
	require.NotEmpty(t, ps)
	assert.Equal(t, "v", ps[0].Key)

	_, err = svc.Parameters(id, "missing")
	assert.Error(t, err)
}

func TestRefreshCallbackWired(t *testing.T) {
	svc := New(nil)
	id, err := svc.StartSession(model.SessionConfig{
		PageHost: "shop.example.com",
		Tunables: fastTunables(),
	}, nil, nil)
	require.NoError(t, err)
	defer svc.StopSession(id)

	ch := make(chan struct{}, 1)
	require.NoError(t, svc.OnRefresh(id, func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}))
	require.NoError(t, svc.RequestRefresh(id))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("刷新回调未触发")
	}
}

func TestStatsSnapshot(t *testing.T) {
	svc := New(nil)
	id, err := svc.StartSession(model.SessionConfig{PageHost: "shop.example.com"}, nil, nil)
	require.NoError(t, err)
	defer svc.StopSession(id)

	require.NoError(t, svc.Ingest(id, model.NetworkRecord{URL: "https://www.google-analytics.com/g/collect"}))
	st, err := svc.Stats(id)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Requests)
	assert.Equal(t, 1, st.TagRelated)
}
