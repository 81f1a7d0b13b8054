package classify

import (
	"strings"

	"github.com/tidwall/gjson"
)

// UnknownVendor 未命中任何条目时的兜底厂商名
const UnknownVendor = "Unknown"

type vendorRule struct {
	needle string
	name   string
}

// vendorTable 有序厂商匹配表，自上而下首条命中即返回。
// 只允许追加，不允许重排，保证既有分类结果稳定。
var vendorTable = []vendorRule{
	{"tealiumiq.com", "Tealium"},
	{"tiqcdn.com", "Tealium"},
	{"collect.tealium", "Tealium"},
	{"google-analytics.com", "Google"},
	{"analytics.google.com", "Google"},
	{"googletagmanager.com", "Google"},
	{"doubleclick.net", "Google"},
	{"googleadservices.com", "Google"},
	{"googlesyndication.com", "Google"},
	{"facebook.com/tr", "Facebook"},
	{"connect.facebook.net", "Facebook"},
	{"facebook.net", "Facebook"},
	{"omtrdc.net", "Adobe"},
	{"demdex.net", "Adobe"},
	{"2o7.net", "Adobe"},
	{"adobedtm.com", "Adobe"},
	{"hotjar.com", "Hotjar"},
	{"mixpanel.com", "Mixpanel"},
	{"segment.io", "Segment"},
	{"segment.com", "Segment"},
	{"amplitude.com", "Amplitude"},
	{"linkedin.com/px", "LinkedIn"},
	{"licdn.com", "LinkedIn"},
	{"ads-twitter.com", "Twitter"},
	{"analytics.twitter.com", "Twitter"},
	{"tiktok.com/api", "TikTok"},
	{"analytics.tiktok.com", "TikTok"},
	{"ct.pinterest.com", "Pinterest"},
	{"pinimg.com", "Pinterest"},
	{"criteo.com", "Criteo"},
	{"criteo.net", "Criteo"},
	{"bat.bing.com", "Microsoft"},
	{"clarity.ms", "Microsoft"},
	{"hubspot.com", "HubSpot"},
	{"hs-analytics.net", "HubSpot"},
	{"sc-static.net", "Snapchat"},
	{"tr.snapchat.com", "Snapchat"},
	{"quantserve.com", "Quantcast"},
	{"scorecardresearch.com", "comScore"},
	{"nr-data.net", "New Relic"},
	{"newrelic.com", "New Relic"},
	{"datadoghq.com", "Datadog"},
	{"branch.io", "Branch"},
	{"klaviyo.com", "Klaviyo"},
	{"optimizely.com", "Optimizely"},
	{"crazyegg.com", "Crazy Egg"},
	{"fullstory.com", "FullStory"},
	{"outbrain.com", "Outbrain"},
	{"taboola.com", "Taboola"},
}

// Vendor 将 URL 映射为厂商名，纯函数，首条命中即返回
func Vendor(rawURL string) string {
	lc := strings.ToLower(rawURL)
	for _, r := range vendorTable {
		if strings.Contains(lc, r.needle) {
			return r.name
		}
	}
	return UnknownVendor
}

// configProbePaths 标签配置对象中可能承载厂商线索的字段
var configProbePaths = []string{"tag_name", "title", "template", "src", "u", "vendor"}

// VendorFromConfig 对序列化的标签配置执行同风格匹配，
// 用于只有加载器配置、拿不到网络流量时的分类
func VendorFromConfig(blob string) string {
	if gjson.Valid(blob) {
		var sb strings.Builder
		doc := gjson.Parse(blob)
		for _, p := range configProbePaths {
			if v := doc.Get(p); v.Exists() {
				sb.WriteString(v.String())
				sb.WriteByte(' ')
			}
		}
		if sb.Len() > 0 {
			if name := Vendor(sb.String()); name != UnknownVendor {
				return name
			}
		}
	}
	return Vendor(blob)
}
