package classify

import (
	"net/url"
	"regexp"
	"strings"
)

// tagHosts 已知分析/标签域名允许列表（域名片段匹配）
var tagHosts = []string{
	"tealiumiq.com", "tiqcdn.com",
	"google-analytics.com", "analytics.google.com", "googletagmanager.com",
	"doubleclick.net", "googleadservices.com", "googlesyndication.com",
	"facebook.com", "facebook.net",
	"omtrdc.net", "demdex.net", "2o7.net", "adobedtm.com",
	"hotjar.com", "mixpanel.com", "segment.io", "segment.com", "amplitude.com",
	"licdn.com", "ads-twitter.com", "analytics.tiktok.com", "ct.pinterest.com",
	"criteo.com", "criteo.net", "bat.bing.com", "clarity.ms",
	"hubspot.com", "hs-analytics.net", "tr.snapchat.com",
	"quantserve.com", "scorecardresearch.com", "nr-data.net",
	"branch.io", "klaviyo.com", "optimizely.com", "fullstory.com",
}

// trackingPaths 常见采集端点路径片段
var trackingPaths = []string{
	"/collect", "/pixel", "/track", "/beacon", "/b/ss", "/event", "/i.gif",
	"/analytics", "/impression",
}

// trackingPrefixes 常见追踪查询参数前缀
var trackingPrefixes = []string{
	"utm_", "ga_", "gclid", "fbclid", "dclid", "msclkid", "mc_", "tealium_",
	"wbraid", "gbraid", "twclid", "ttclid",
}

// genericParams 泛化追踪参数，单独出现时权重较低，需两个以上才算命中
var genericParams = []string{
	"id", "uid", "cid", "tid", "sid", "session", "event", "visitor", "user_id",
	"account", "profile",
}

var base64ish = regexp.MustCompile(`^[A-Za-z0-9+/=_-]{40,}$`)

var analyticsPathHint = regexp.MustCompile(`(?i)(pixel|beacon|track|collect|metric|telemetry|1x1)`)

// TagRelated 判定 URL 是否与分析/标签流量相关。
// 纯函数：给定同一 URL 与页面主机名，结果可重复。
func TagRelated(rawURL, pageHost string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)
	query := u.Query()

	// (a) 域名允许列表
	for _, h := range tagHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}

	// (b) 路径模式；带查询串的 .gif 像素也算
	for _, p := range trackingPaths {
		if strings.Contains(path, p) {
			return true
		}
	}
	// Facebook 风格的 /tr 端点只做整段匹配，避免误伤 /transactions 之类
	if path == "/tr" || strings.HasSuffix(path, "/tr") {
		return true
	}
	if strings.HasSuffix(path, ".gif") && u.RawQuery != "" {
		return true
	}

	// (c) 追踪参数前缀
	for key := range query {
		lk := strings.ToLower(key)
		for _, pre := range trackingPrefixes {
			if strings.HasPrefix(lk, pre) {
				return true
			}
		}
	}

	// (d) 泛化追踪参数，两个以上才视为信号
	hits := 0
	for key := range query {
		lk := strings.ToLower(key)
		for _, g := range genericParams {
			if lk == g {
				hits++
				break
			}
		}
	}
	if hits >= 2 {
		return true
	}

	// (e) 长 base64 样不透明值
	for _, vals := range query {
		for _, v := range vals {
			if base64ish.MatchString(v) {
				return true
			}
		}
	}

	// (f) 最弱启发：外部域且路径像分析端点，允许误报
	if pageHost != "" && !sameSite(host, pageHost) {
		if analyticsPathHint.MatchString(path) {
			return true
		}
	}
	return false
}

func sameSite(host, pageHost string) bool {
	h := strings.ToLower(strings.TrimPrefix(host, "www."))
	p := strings.ToLower(strings.TrimPrefix(pageHost, "www."))
	return h == p || strings.HasSuffix(h, "."+p) || strings.HasSuffix(p, "."+h)
}
