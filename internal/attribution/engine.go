// Package attribution 将一次触发窗口关联到一组标签 ID。
// 四路独立信号按可靠性降序融合：控制台日志、网络记录、加载器轮询证据、
// 运行时工作队列；仅当全部为空时才退化到全量配置扫描。
package attribution

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"tagscope/internal/logger"
	"tagscope/internal/store"
	"tagscope/pkg/host"
	"tagscope/pkg/model"
)

var (
	reSending    = regexp.MustCompile(`SENDING:\s*(\d+)`)
	reSendColon  = regexp.MustCompile(`\bsend:(\d+)`)
	reLoaderLoad = regexp.MustCompile(`(?i)\bLOAD\b[^\d]*utag[._#](\d+)`)

	reTagScript = regexp.MustCompile(`utag\.(\d+)\.js`)
	reTagPath   = regexp.MustCompile(`/tags?/(\d+)(?:/|$|\?)`)
)

// Engine 标签归因引擎
type Engine struct {
	store   *store.Store
	runtime func() host.Runtime
	tun     model.Tunables
	log     logger.Logger
}

// New 创建归因引擎。runtime 访问器每次解析时重新求值，
// 宿主随时可能出现或消失。
func New(st *store.Store, runtime func() host.Runtime, tun model.Tunables, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{store: st, runtime: runtime, tun: tun.Normalize(), log: log}
}

// Resolve 解析触发窗口内被认为已触发的标签集合。
// window>0 时收窄各信号源自身的新鲜度窗口；宿主完全缺失时
// 各源各自贡献空集，解析过程永不报错。
func (e *Engine) Resolve(window time.Duration) []int {
	seen := map[int]struct{}{}

	// 1. 控制台日志模式：最可靠，反映运行时自身的调试输出
	for _, line := range e.store.ConsoleSince(clamp(e.tun.ConsoleWindow, window)) {
		for _, id := range consoleTagIDs(line.Text, e.tun.BeaconMarkerTagID) {
			seen[id] = struct{}{}
		}
	}

	// 2. 近期网络记录中可识别的标签路径段
	for _, rec := range e.store.RequestsSince(clamp(e.tun.NetworkWindow, window)) {
		if !rec.TagRelated {
			continue
		}
		if id, ok := URLTagID(rec.URL); ok {
			seen[id] = struct{}{}
		}
	}

	// 3. 加载器配置轮询产生的短时活动证据
	for _, act := range e.store.ActivitySince(clamp(e.tun.ActivityWindow, window)) {
		seen[act.TagID] = struct{}{}
	}

	// 4. 运行时自身暴露的已触发工作队列
	rt := e.currentRuntime()
	if wq, ok := rt.WorkQueue(); ok {
		for _, uid := range wq {
			seen[uid] = struct{}{}
		}
	}

	// 5. 兜底：仅当以上全部为空时扫描全量配置的 send 标志
	if len(seen) == 0 {
		if cfg, ok := rt.LoaderConfig(); ok {
			for id, tc := range cfg {
				if tc.Send == 1 {
					seen[id] = struct{}{}
				}
			}
		}
	}

	out := make([]int, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func (e *Engine) currentRuntime() host.Runtime {
	if e.runtime == nil {
		return host.Absent()
	}
	rt := e.runtime()
	if rt == nil {
		return host.Absent()
	}
	return rt
}

// consoleTagIDs 从一行控制台输出中抽取标签 ID
func consoleTagIDs(line string, beaconTagID int) []int {
	var out []int
	for _, re := range []*regexp.Regexp{reSending, reSendColon, reLoaderLoad} {
		for _, m := range re.FindAllStringSubmatch(line, -1) {
			if id, err := strconv.Atoi(m[1]); err == nil {
				out = append(out, id)
			}
		}
	}
	// 运行时的 sendBeacon 标记隐含一个众所周知的默认标签
	if beaconTagID > 0 && strings.Contains(line, "sendBeacon") {
		out = append(out, beaconTagID)
	}
	return out
}

// URLTagID 在 URL 中识别标签标识路径段
func URLTagID(rawURL string) (int, bool) {
	if m := reTagScript.FindStringSubmatch(rawURL); m != nil {
		if id, err := strconv.Atoi(m[1]); err == nil {
			return id, true
		}
	}
	if m := reTagPath.FindStringSubmatch(rawURL); m != nil {
		if id, err := strconv.Atoi(m[1]); err == nil {
			return id, true
		}
	}
	return 0, false
}

func clamp(d, window time.Duration) time.Duration {
	if window > 0 && window < d {
		return window
	}
	return d
}
