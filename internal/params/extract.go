package params

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"tagscope/pkg/model"
)

// Extract 将一条网络记录解码为扁平参数列表。
// URL 查询串必解；请求体按探测到的编码分支处理，任一分支解析失败
// 都回退到更粗一级的表示，而不是丢弃载荷。
func Extract(rec *model.NetworkRecord) []model.Parameter {
	var out []model.Parameter
	if rec == nil {
		return out
	}

	if u, err := url.Parse(rec.URL); err == nil && u.RawQuery != "" {
		out = append(out, parsePairs(u.RawQuery, model.ParamURL)...)
	}

	body := strings.TrimSpace(rec.Body)
	if body == "" {
		return finalize(out)
	}

	if gjson.Valid(body) && (strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[")) {
		gjson.Parse(body).ForEach(func(k, v gjson.Result) bool {
			out = append(out, model.Parameter{Key: k.String(), Value: v.String(), Source: model.ParamJSON})
			return true
		})
		return finalize(out)
	}

	out = append(out, parseForm(body)...)
	return finalize(out)
}

// parseForm 解析表单编码体；发现捆绑信标约定（data 字段经
// URL 解码后是合法 JSON）时递归展开为点路径参数
func parseForm(body string) []model.Parameter {
	var out []model.Parameter
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		key := unescape(kv[0])
		val := ""
		if len(kv) == 2 {
			val = kv[1]
		}
		decoded := unescape(val)
		if key == "data" && gjson.Valid(decoded) && strings.HasPrefix(strings.TrimSpace(decoded), "{") {
			out = append(out, flatten("", gjson.Parse(decoded))...)
			continue
		}
		out = append(out, model.Parameter{Key: key, Value: decoded, Source: model.ParamForm})
	}
	return out
}

// flatten 将嵌套 JSON 展开为点路径键
func flatten(prefix string, v gjson.Result) []model.Parameter {
	var out []model.Parameter
	switch {
	case v.IsObject():
		v.ForEach(func(k, cv gjson.Result) bool {
			out = append(out, flatten(join(prefix, k.String()), cv)...)
			return true
		})
	case v.IsArray():
		i := 0
		v.ForEach(func(_, cv gjson.Result) bool {
			out = append(out, flatten(join(prefix, strconv.Itoa(i)), cv)...)
			i++
			return true
		})
	default:
		out = append(out, model.Parameter{Key: prefix, Value: v.String(), Source: model.ParamNestedBeacon})
	}
	return out
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func parsePairs(raw string, src model.SourceKind) []model.Parameter {
	var out []model.Parameter
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		val := ""
		if len(kv) == 2 {
			val = kv[1]
		}
		out = append(out, model.Parameter{Key: unescape(kv[0]), Value: unescape(val), Source: src})
	}
	return out
}

// unescape 尽力 URL 解码，失败时保留原值
func unescape(s string) string {
	if d, err := url.QueryUnescape(s); err == nil {
		return d
	}
	return s
}

func finalize(ps []model.Parameter) []model.Parameter {
	for i := range ps {
		ps[i].Category = Categorize(ps[i].Key)
	}
	return ps
}
