package params

import (
	"strings"

	"tagscope/pkg/model"
)

type categoryRule struct {
	keyword  string
	category model.Category
}

// categoryTable 有序分类关键字表，对小写键做子串匹配，首条命中即返回。
// 更具体（更长）的关键字排在前面，末尾不设兜底，未命中归 Custom。
var categoryTable = []categoryRule{
	{"tealium", model.CategoryTealium},
	{"ut.", model.CategoryTealium},
	{"utag", model.CategoryTealium},
	{"tiq", model.CategoryTealium},
	{"localstorage", model.CategoryLocalStorage},
	{"ls.", model.CategoryLocalStorage},
	{"cookie", model.CategoryCookie},
	{"cp.", model.CategoryCookie},
	{"dom.", model.CategoryDOM},
	{"utm_", model.CategoryCampaign},
	{"campaign", model.CategoryCampaign},
	{"gclid", model.CategoryCampaign},
	{"fbclid", model.CategoryCampaign},
	{"affiliate", model.CategoryCampaign},
	{"promo", model.CategoryCampaign},
	{"transaction", model.CategoryCommerce},
	{"order", model.CategoryCommerce},
	{"cart", model.CategoryCommerce},
	{"revenue", model.CategoryCommerce},
	{"currency", model.CategoryCommerce},
	{"payment", model.CategoryCommerce},
	{"shipping", model.CategoryCommerce},
	{"total", model.CategoryCommerce},
	{"price", model.CategoryCommerce},
	{"product", model.CategoryProduct},
	{"item", model.CategoryProduct},
	{"sku", model.CategoryProduct},
	{"quantity", model.CategoryProduct},
	{"brand", model.CategoryProduct},
	{"customer", model.CategoryUser},
	{"visitor", model.CategoryUser},
	{"user", model.CategoryUser},
	{"email", model.CategoryUser},
	{"login", model.CategoryUser},
	{"member", model.CategoryUser},
	{"event", model.CategoryEvent},
	{"action", model.CategoryEvent},
	{"interaction", model.CategoryEvent},
	{"link_", model.CategoryEvent},
	{"referrer", model.CategoryPage},
	{"page", model.CategoryPage},
	{"url", model.CategoryPage},
	{"title", model.CategoryPage},
	{"path", model.CategoryPage},
	{"screen_name", model.CategoryPage},
	{"viewport", model.CategoryBrowser},
	{"browser", model.CategoryBrowser},
	{"device", model.CategoryBrowser},
	{"timezone", model.CategoryBrowser},
	{"language", model.CategoryBrowser},
	{"platform", model.CategoryBrowser},
	{"resolution", model.CategoryBrowser},
	{"useragent", model.CategoryBrowser},
	{"timestamp", model.CategoryTechnical},
	{"session", model.CategoryTechnical},
	{"version", model.CategoryTechnical},
	{"random", model.CategoryTechnical},
	{"cachebuster", model.CategoryTechnical},
	{"tid", model.CategoryTechnical},
	{"cid", model.CategoryTechnical},
}

// Categorize 为参数键分配语义分类，大小写不敏感，未命中返回 Custom
func Categorize(key string) model.Category {
	lk := strings.ToLower(key)
	for _, r := range categoryTable {
		if strings.Contains(lk, r.keyword) {
			return r.category
		}
	}
	return model.CategoryCustom
}
