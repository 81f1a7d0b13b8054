package cdpingest

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/mafredri/cdp/protocol/network"

	"tagscope/internal/classify"
	"tagscope/pkg/model"
)

// toRecord 将 CDP 网络事件转换为中立记录模型。
// 相关性与厂商在此一次性判定，之后不再变更。
func toRecord(ev *network.RequestWillBeSentReply, pageHost string) *model.NetworkRecord {
	rec := &model.NetworkRecord{
		Transport:  transportOf(ev.Type),
		Method:     ev.Request.Method,
		URL:        ev.Request.URL,
		State:      model.StatePending,
		External:   true,
		TagRelated: classify.TagRelated(ev.Request.URL, pageHost),
		Vendor:     classify.Vendor(ev.Request.URL),
	}
	rec.RequestHeaders = headerFields(ev.Request.Headers)
	if ev.Request.PostData != nil {
		rec.Body = *ev.Request.PostData
		rec.BodyKind = sniffBodyKind(rec.Body)
	} else {
		rec.BodyKind = model.BodyNone
	}
	return rec
}

// transportOf 按 CDP 资源类型映射到三类原语
func transportOf(t network.ResourceType) model.Transport {
	switch string(t) {
	case "XHR":
		return model.TransportXHR
	case "Ping":
		return model.TransportBeacon
	default:
		return model.TransportFetch
	}
}

// headerFields 解析 CDP 原始头对象；非标准头迭代失败时
// 吞掉错误，以空头继续
func headerFields(raw network.Headers) []model.HeaderField {
	if len(raw) == 0 {
		return nil
	}
	h := map[string]string{}
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil
	}
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]model.HeaderField, 0, len(names))
	for _, k := range names {
		out = append(out, model.HeaderField{Name: k, Value: h[k]})
	}
	return out
}

func sniffBodyKind(body string) model.BodyKind {
	s := strings.TrimSpace(body)
	switch {
	case s == "":
		return model.BodyNone
	case strings.HasPrefix(s, "{") || strings.HasPrefix(s, "["):
		return model.BodyJSON
	case strings.Contains(s, "=") && !strings.ContainsAny(s, " \n"):
		return model.BodyForm
	default:
		return model.BodyText
	}
}
