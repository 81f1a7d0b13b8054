// Package transport 定义出站网络原语的能力接口（fetch / xhr / beacon）。
// 拦截器以装饰器形式包装注入的真实传输实现，而不是替换全局原语。
package transport

import (
	"context"
	"io"
	"net/url"
	"strings"

	"tagscope/pkg/model"
)

// Headers 有序请求头集合，切片顺序即设置顺序
type Headers []model.HeaderField

// Get 大小写不敏感取值
func (h Headers) Get(key string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, key) {
			return f.Value
		}
	}
	return ""
}

// Set 覆盖同名头或追加
func (h *Headers) Set(key, value string) {
	for i, f := range *h {
		if strings.EqualFold(f.Name, key) {
			(*h)[i].Value = value
			return
		}
	}
	*h = append(*h, model.HeaderField{Name: key, Value: value})
}

// Request 传输层中立请求模型
type Request struct {
	Method   string
	URL      string
	Headers  Headers
	Body     []byte
	BodyKind model.BodyKind
}

// Response 传输层中立响应模型
type Response struct {
	StatusCode int
	Headers    Headers
	Body       []byte
}

// Fetcher promise 风格原语：阻塞直至响应或错误
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// XHRClient 回调风格原语：立即返回，完成或失败时回调
type XHRClient interface {
	Send(req *Request, onLoad func(*Response), onError func(error))
}

// BeaconBody 信标载荷，四种形态之一：文本、表单、二进制、Blob 流。
// Blob 形态的解码天然异步，不得阻塞 SendBeacon 的同步返回。
type BeaconBody struct {
	Text  string
	Form  url.Values
	Bytes []byte
	Blob  io.Reader
}

// BeaconSender 即发即弃原语：同步返回是否已受理
type BeaconSender interface {
	SendBeacon(rawURL string, body BeaconBody) bool
}

// Stack 页面的三个出站原语集合
type Stack struct {
	Fetch  Fetcher
	XHR    XHRClient
	Beacon BeaconSender
}
