package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagscope/pkg/model"
)

func keys(ps []model.Parameter) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Key
	}
	return out
}

func TestExtractURLQueryPreservesOrder(t *testing.T) {
	rec := &model.NetworkRecord{
		URL: "https://www.google-analytics.com/collect?v=1&tid=UA-1&cid=555&t=pageview",
	}
	ps := Extract(rec)
	assert.Equal(t, []string{"v", "tid", "cid", "t"}, keys(ps))
	for _, p := range ps {
		assert.Equal(t, model.ParamURL, p.Source)
	}
}

func TestExtractURLDecodesValues(t *testing.T) {
	rec := &model.NetworkRecord{URL: "https://x.example.com/c?page_name=Home%20Page&empty="}
	ps := Extract(rec)
	require.Len(t, ps, 2)
	assert.Equal(t, "Home Page", ps[0].Value)
	assert.Equal(t, "", ps[1].Value)
}

func TestExtractJSONBodyTopLevelKeys(t *testing.T) {
	rec := &model.NetworkRecord{
		URL:  "https://api.segment.io/v1/track",
		Body: `{"event":"Order Completed","properties":{"total":12.5},"userId":"u-9"}`,
	}
	ps := Extract(rec)
	require.Len(t, ps, 3)
	assert.Equal(t, []string{"event", "properties", "userId"}, keys(ps))
	assert.Equal(t, model.ParamJSON, ps[0].Source)
}

func TestExtractFormBody(t *testing.T) {
	rec := &model.NetworkRecord{
		URL:  "https://x.example.com/track",
		Body: "ev=click&label=Buy%20Now",
	}
	ps := Extract(rec)
	require.Len(t, ps, 2)
	assert.Equal(t, "click", ps[0].Value)
	assert.Equal(t, "Buy Now", ps[1].Value)
	assert.Equal(t, model.ParamForm, ps[0].Source)
}

func TestExtractNestedBeaconFlattens(t *testing.T) {
	rec := &model.NetworkRecord{
		URL:  "https://collect.tealiumiq.com/event",
		Body: `data=%7B%22tealium_event%22%3A%22view%22%2C%22order%22%3A%7B%22total%22%3A99%7D%2C%22items%22%3A%5B%22a%22%2C%22b%22%5D%7D&other=1`,
	}
	ps := Extract(rec)

	byKey := map[string]model.Parameter{}
	for _, p := range ps {
		byKey[p.Key] = p
	}
	require.Contains(t, byKey, "tealium_event")
	assert.Equal(t, model.ParamNestedBeacon, byKey["tealium_event"].Source)
	assert.Equal(t, "view", byKey["tealium_event"].Value)
	assert.Equal(t, "99", byKey["order.total"].Value)
	assert.Equal(t, "a", byKey["items.0"].Value)
	assert.Equal(t, "b", byKey["items.1"].Value)
	// 非 data 字段按普通表单处理
	assert.Equal(t, model.ParamForm, byKey["other"].Source)
}

func TestExtractEmptyAndNil(t *testing.T) {
	assert.Empty(t, Extract(nil))
	assert.Empty(t, Extract(&model.NetworkRecord{URL: "https://x.example.com/collect"}))
}

func TestCategorizeFirstMatch(t *testing.T) {
	cases := []struct {
		key  string
		want model.Category
	}{
		{"tealium_event", model.CategoryTealium},
		{"ut.version", model.CategoryTealium},
		// cp. 前缀排在 utag 之后：首条命中即返回
		{"cp.utag_main_ses_id", model.CategoryTealium},
		{"cp.first_visit", model.CategoryCookie},
		{"utm_campaign", model.CategoryCampaign},
		{"order_total", model.CategoryCommerce},
		{"product_id", model.CategoryProduct},
		{"customer_email", model.CategoryUser},
		{"page_name", model.CategoryPage},
		{"browser_language", model.CategoryBrowser},
		{"timestamp", model.CategoryTechnical},
		{"xyzzy", model.CategoryCustom},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Categorize(c.key), c.key)
	}
}
