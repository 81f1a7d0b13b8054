package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"tagscope/pkg/model"
)

// NewHTTPStack 基于 net/http 构建真实传输栈
func NewHTTPStack(client *http.Client) *Stack {
	if client == nil {
		client = http.DefaultClient
	}
	f := &httpFetcher{client: client}
	return &Stack{
		Fetch:  f,
		XHR:    &httpXHR{fetch: f},
		Beacon: &httpBeacon{client: client},
	}
}

type httpFetcher struct {
	client *http.Client
}

func (h *httpFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for _, f := range req.Headers {
		hr.Header.Add(f.Name, f.Value)
	}
	res, err := h.client.Do(hr)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	out := &Response{StatusCode: res.StatusCode}
	for name, vals := range res.Header {
		for _, v := range vals {
			out.Headers = append(out.Headers, model.HeaderField{Name: name, Value: v})
		}
	}
	out.Body, err = io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type httpXHR struct {
	fetch *httpFetcher
}

// Send 以回调语义复用 fetch 实现：调用立即返回，结果经回调送达
func (h *httpXHR) Send(req *Request, onLoad func(*Response), onError func(error)) {
	go func() {
		res, err := h.fetch.Fetch(context.Background(), req)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onLoad != nil {
			onLoad(res)
		}
	}()
}

type httpBeacon struct {
	client *http.Client
}

// SendBeacon 即发即弃：同步返回受理结果，实际发送在后台完成
func (h *httpBeacon) SendBeacon(rawURL string, body BeaconBody) bool {
	var payload []byte
	switch {
	case body.Text != "":
		payload = []byte(body.Text)
	case len(body.Bytes) > 0:
		payload = body.Bytes
	case body.Form != nil:
		payload = []byte(body.Form.Encode())
	}
	blob := body.Blob
	go func() {
		data := payload
		if blob != nil {
			if b, err := io.ReadAll(blob); err == nil {
				data = b
			}
		}
		req, err := http.NewRequest(http.MethodPost, rawURL, bytes.NewReader(data))
		if err != nil {
			return
		}
		res, err := h.client.Do(req)
		if err != nil {
			return
		}
		res.Body.Close()
	}()
	return true
}
