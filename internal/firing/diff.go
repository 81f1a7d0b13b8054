package firing

import (
	"fmt"
	"sort"

	"tagscope/pkg/model"
)

// Diff 计算前后数据层快照的结构差异，键为扁平化点路径，
// 输出按键名排序保证稳定
func Diff(pre, post map[string]any) []model.DiffEntry {
	a := flattenMap("", pre, map[string]string{})
	b := flattenMap("", post, map[string]string{})

	var out []model.DiffEntry
	for k, bv := range b {
		av, exists := a[k]
		switch {
		case !exists:
			out = append(out, model.DiffEntry{Key: k, Kind: model.DiffAdded, After: bv})
		case av != bv:
			out = append(out, model.DiffEntry{Key: k, Kind: model.DiffChanged, Before: av, After: bv})
		}
	}
	for k, av := range a {
		if _, exists := b[k]; !exists {
			out = append(out, model.DiffEntry{Key: k, Kind: model.DiffRemoved, Before: av})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func flattenMap(prefix string, m map[string]any, acc map[string]string) map[string]string {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		flattenValue(key, v, acc)
	}
	return acc
}

func flattenValue(key string, v any, acc map[string]string) {
	switch tv := v.(type) {
	case map[string]any:
		if len(tv) == 0 {
			acc[key] = "{}"
			return
		}
		flattenMap(key, tv, acc)
	case []any:
		for i, cv := range tv {
			flattenValue(fmt.Sprintf("%s.%d", key, i), cv, acc)
		}
	case nil:
		acc[key] = ""
	default:
		acc[key] = fmt.Sprint(tv)
	}
}
