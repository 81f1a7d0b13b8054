package intercept

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	"tagscope/internal/classify"
	"tagscope/internal/logger"
	"tagscope/internal/store"
	"tagscope/pkg/model"
	"tagscope/pkg/transport"
)

// tap 三个包装器共享的观测上下文
type tap struct {
	store    *store.Store
	pageHost string
	log      logger.Logger
	now      func() time.Time
}

// Instrument 为传输栈安装观测包装。幂等：已包装的栈原样返回，
// 不会叠加第二层。包装是组合而非替换，底层实现可以是任意 transport.Fetcher。
func Instrument(s *transport.Stack, st *store.Store, pageHost string, log logger.Logger) *transport.Stack {
	if s == nil {
		return nil
	}
	if isInstrumented(s) {
		return s
	}
	if log == nil {
		log = logger.NewNop()
	}
	t := &tap{store: st, pageHost: pageHost, log: log, now: time.Now}
	out := &transport.Stack{}
	if s.Fetch != nil {
		out.Fetch = &fetchTap{tap: t, inner: s.Fetch}
	}
	if s.XHR != nil {
		out.XHR = &xhrTap{tap: t, inner: s.XHR}
	}
	if s.Beacon != nil {
		out.Beacon = &beaconTap{tap: t, inner: s.Beacon}
	}
	return out
}

// Uninstrument 摘除观测包装，还原底层原语引用
func Uninstrument(s *transport.Stack) *transport.Stack {
	if s == nil {
		return nil
	}
	out := &transport.Stack{Fetch: s.Fetch, XHR: s.XHR, Beacon: s.Beacon}
	if w, ok := s.Fetch.(*fetchTap); ok {
		out.Fetch = w.inner
	}
	if w, ok := s.XHR.(*xhrTap); ok {
		out.XHR = w.inner
	}
	if w, ok := s.Beacon.(*beaconTap); ok {
		out.Beacon = w.inner
	}
	return out
}

func isInstrumented(s *transport.Stack) bool {
	if _, ok := s.Fetch.(*fetchTap); ok {
		return true
	}
	if _, ok := s.XHR.(*xhrTap); ok {
		return true
	}
	if _, ok := s.Beacon.(*beaconTap); ok {
		return true
	}
	return false
}

// open 同步登记 pending 记录：相关性与厂商在创建时一次性判定
func (t *tap) open(tr model.Transport, method, rawURL string, headers transport.Headers, body string, kind model.BodyKind) *model.NetworkRecord {
	rec := &model.NetworkRecord{
		Transport:      tr,
		Method:         method,
		URL:            rawURL,
		RequestHeaders: append([]model.HeaderField(nil), headers...),
		Body:           body,
		BodyKind:       kind,
		Start:          t.now(),
		State:          model.StatePending,
		TagRelated:     classify.TagRelated(rawURL, t.pageHost),
		Vendor:         classify.Vendor(rawURL),
	}
	t.store.AppendRequest(rec)
	t.store.AppendConsole(fmt.Sprintf("%s %s %s", tr, method, rawURL))
	return rec
}

// settle 完成匹配的 pending 记录；标签相关的完成触发节流刷新
func (t *tap) settle(rawURL string, tr model.Transport, fill func(*model.NetworkRecord)) {
	done := t.store.CompletePending(rawURL, tr, fill)
	if done != nil && done.TagRelated {
		t.store.NotifyRefresh()
	}
}

type fetchTap struct {
	tap   *tap
	inner transport.Fetcher
}

// Fetch 透传原语调用：返回值与错误与未包装实现完全一致
func (f *fetchTap) Fetch(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	f.tap.open(model.TransportFetch, req.Method, req.URL, req.Headers, string(req.Body), req.BodyKind)
	start := f.tap.now()
	res, err := f.inner.Fetch(ctx, req)
	f.tap.settle(req.URL, model.TransportFetch, func(r *model.NetworkRecord) {
		r.Duration = f.tap.now().Sub(start)
		if err != nil {
			r.State = model.StateError
			r.Error = err.Error()
			return
		}
		r.State = model.StateDone
		r.StatusCode = res.StatusCode
		r.ResponseSize = int64(len(res.Body))
	})
	return res, err
}

type xhrTap struct {
	tap   *tap
	inner transport.XHRClient
}

// Send 保留回调语义：包装回调先完成记录，再调用调用方的回调
func (x *xhrTap) Send(req *transport.Request, onLoad func(*transport.Response), onError func(error)) {
	x.tap.open(model.TransportXHR, req.Method, req.URL, req.Headers, string(req.Body), req.BodyKind)
	start := x.tap.now()
	x.inner.Send(req,
		func(res *transport.Response) {
			x.tap.settle(req.URL, model.TransportXHR, func(r *model.NetworkRecord) {
				r.State = model.StateDone
				r.StatusCode = res.StatusCode
				r.ResponseSize = int64(len(res.Body))
				r.Duration = x.tap.now().Sub(start)
			})
			if onLoad != nil {
				onLoad(res)
			}
		},
		func(err error) {
			x.tap.settle(req.URL, model.TransportXHR, func(r *model.NetworkRecord) {
				r.State = model.StateError
				r.Error = err.Error()
				r.Duration = x.tap.now().Sub(start)
			})
			if onError != nil {
				onError(err)
			}
		})
}

type beaconTap struct {
	tap   *tap
	inner transport.BeaconSender
}

// SendBeacon 同步返回底层受理结果；Blob 载荷的解码异步进行，
// 读完后再补写记录，不阻塞本次调用
func (b *beaconTap) SendBeacon(rawURL string, body transport.BeaconBody) bool {
	text, kind := normalizeBeaconBody(body)
	rec := b.tap.open(model.TransportBeacon, "POST", rawURL, nil, text, kind)

	forward := body
	if body.Blob != nil {
		id := rec.ID
		forward.Blob = &watchReader{
			inner: body.Blob,
			done: func(data []byte) {
				b.tap.store.UpdateRecord(id, func(r *model.NetworkRecord) {
					r.Body, r.BodyKind = decodeBytes(data)
				})
			},
		}
	}

	ok := b.inner.SendBeacon(rawURL, forward)
	b.tap.settle(rawURL, model.TransportBeacon, func(r *model.NetworkRecord) {
		r.Duration = b.tap.now().Sub(r.Start)
		if ok {
			r.State = model.StateDone
			r.StatusCode = 204
		} else {
			r.State = model.StateError
			r.Error = "beacon not accepted"
		}
	})
	return ok
}

// normalizeBeaconBody 将四种信标载荷形态归一为可解码的字符串表示
func normalizeBeaconBody(body transport.BeaconBody) (string, model.BodyKind) {
	switch {
	case body.Text != "":
		return body.Text, model.BodyText
	case body.Form != nil:
		return body.Form.Encode(), model.BodyForm
	case len(body.Bytes) > 0:
		s, k := decodeBytes(body.Bytes)
		return s, k
	case body.Blob != nil:
		// 流式载荷此刻不可读，异步解码后补写
		return "", model.BodyBinary
	}
	return "", model.BodyNone
}

func decodeBytes(data []byte) (string, model.BodyKind) {
	if utf8.Valid(data) {
		return string(data), model.BodyText
	}
	return base64.StdEncoding.EncodeToString(data), model.BodyBinary
}

// watchReader 透传读取并缓存内容，EOF 时回调一次
type watchReader struct {
	inner io.Reader
	done  func([]byte)
	buf   []byte
	once  sync.Once
}

func (w *watchReader) Read(p []byte) (int, error) {
	n, err := w.inner.Read(p)
	if n > 0 {
		w.buf = append(w.buf, p[:n]...)
	}
	if err == io.EOF {
		w.once.Do(func() {
			if w.done != nil {
				w.done(w.buf)
			}
		})
	}
	return n, err
}
