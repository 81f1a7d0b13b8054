package intercept

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagscope/internal/store"
	"tagscope/pkg/model"
	"tagscope/pkg/transport"
)

type stubFetcher struct {
	res *transport.Response
	err error
}

func (f *stubFetcher) Fetch(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	return f.res, f.err
}

type stubXHR struct{}

func (stubXHR) Send(req *transport.Request, onLoad func(*transport.Response), onError func(error)) {
	if strings.Contains(req.URL, "fail") {
		onError(errors.New("boom"))
		return
	}
	onLoad(&transport.Response{StatusCode: 200, Body: []byte("ok")})
}

type stubBeacon struct {
	accept bool
	got    []byte
}

func (b *stubBeacon) SendBeacon(rawURL string, body transport.BeaconBody) bool {
	if body.Blob != nil {
		buf := new(bytes.Buffer)
		buf.ReadFrom(body.Blob)
		b.got = buf.Bytes()
	}
	return b.accept
}

func newStack(f transport.Fetcher, x transport.XHRClient, b transport.BeaconSender) *transport.Stack {
	return &transport.Stack{Fetch: f, XHR: x, Beacon: b}
}

func TestInstrumentIdempotent(t *testing.T) {
	st := store.New(model.Tunables{}, nil)
	base := newStack(&stubFetcher{}, &stubXHR{}, &stubBeacon{accept: true})

	once := Instrument(base, st, "shop.example.com", nil)
	twice := Instrument(once, st, "shop.example.com", nil)
	assert.Same(t, once, twice)

	restored := Uninstrument(once)
	assert.Same(t, base.Fetch, restored.Fetch)
	assert.Same(t, base.XHR, restored.XHR)
	assert.Same(t, base.Beacon, restored.Beacon)
}

func TestFetchPassThrough(t *testing.T) {
	st := store.New(model.Tunables{}, nil)
	want := &transport.Response{StatusCode: 201, Body: []byte("made")}
	s := Instrument(newStack(&stubFetcher{res: want}, nil, nil), st, "shop.example.com", nil)

	got, err := s.Fetch.Fetch(context.Background(), &transport.Request{
		Method: "POST",
		URL:    "https://www.google-analytics.com/g/collect?v=2&tid=G-1",
	})
	require.NoError(t, err)
	assert.Same(t, want, got)

	recs := st.Requests()
	require.Len(t, recs, 1)
	assert.Equal(t, model.StateDone, recs[0].State)
	assert.Equal(t, 201, recs[0].StatusCode)
	assert.True(t, recs[0].TagRelated)
	assert.Equal(t, "Google", recs[0].Vendor)

	lines := st.Console()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0].Text, "fetch POST https://www.google-analytics.com")
}

func TestFetchErrorPassThrough(t *testing.T) {
	st := store.New(model.Tunables{}, nil)
	wantErr := errors.New("network down")
	s := Instrument(newStack(&stubFetcher{err: wantErr}, nil, nil), st, "", nil)

	_, err := s.Fetch.Fetch(context.Background(), &transport.Request{Method: "GET", URL: "https://x.example.com/a"})
	assert.Same(t, wantErr, err)

	recs := st.Requests()
	require.Len(t, recs, 1)
	assert.Equal(t, model.StateError, recs[0].State)
	assert.Equal(t, "network down", recs[0].Error)
}

func TestXHRCallbackOrder(t *testing.T) {
	st := store.New(model.Tunables{}, nil)
	s := Instrument(newStack(nil, stubXHR{}, nil), st, "", nil)

	var stateAtCallback model.RequestState
	s.XHR.Send(&transport.Request{Method: "GET", URL: "https://x.example.com/ok"},
		func(res *transport.Response) {
			// 回调执行时记录必须已完成
			stateAtCallback = st.Requests()[0].State
		}, nil)
	assert.Equal(t, model.StateDone, stateAtCallback)

	s.XHR.Send(&transport.Request{Method: "GET", URL: "https://x.example.com/fail"}, nil,
		func(err error) {
			assert.Equal(t, "boom", err.Error())
		})
	recs := st.Requests()
	require.Len(t, recs, 2)
	assert.Equal(t, model.StateError, recs[0].State)
}

func TestBeaconAcceptedAndRejected(t *testing.T) {
	st := store.New(model.Tunables{}, nil)
	s := Instrument(newStack(nil, nil, &stubBeacon{accept: true}), st, "", nil)

	ok := s.Beacon.SendBeacon("https://collect.tealiumiq.com/event", transport.BeaconBody{Text: `{"a":1}`})
	assert.True(t, ok)
	recs := st.Requests()
	require.Len(t, recs, 1)
	assert.Equal(t, model.StateDone, recs[0].State)
	assert.Equal(t, 204, recs[0].StatusCode)
	assert.Equal(t, `{"a":1}`, recs[0].Body)

	s2 := Instrument(newStack(nil, nil, &stubBeacon{accept: false}), st, "", nil)
	ok = s2.Beacon.SendBeacon("https://x.example.com/b", transport.BeaconBody{})
	assert.False(t, ok)
	assert.Equal(t, model.StateError, st.Requests()[0].State)
}

func TestBeaconBlobDecodedAsync(t *testing.T) {
	st := store.New(model.Tunables{}, nil)
	sink := &stubBeacon{accept: true}
	s := Instrument(newStack(nil, nil, sink), st, "", nil)

	ok := s.Beacon.SendBeacon("https://x.example.com/b", transport.BeaconBody{
		Blob: strings.NewReader("blob payload"),
	})
	require.True(t, ok)
	// 底层 sender 读到的是完整载荷
	assert.Equal(t, "blob payload", string(sink.got))

	deadline := time.Now().Add(time.Second)
	for {
		body := st.Requests()[0].Body
		if body == "blob payload" {
			break
		}
		require.True(t, time.Now().Before(deadline), "blob 载荷未在期限内补写")
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBeaconFormBody(t *testing.T) {
	st := store.New(model.Tunables{}, nil)
	s := Instrument(newStack(nil, nil, &stubBeacon{accept: true}), st, "", nil)

	body := transport.BeaconBody{}
	body.Text = ""
	body.Form = map[string][]string{"ev": {"click"}}
	s.Beacon.SendBeacon("https://x.example.com/b", body)

	rec := st.Requests()[0]
	assert.Equal(t, model.BodyForm, rec.BodyKind)
	assert.Equal(t, "ev=click", rec.Body)
}

func TestUninstrumentNilSafe(t *testing.T) {
	assert.Nil(t, Instrument(nil, nil, "", nil))
	assert.Nil(t, Uninstrument(nil))
}
