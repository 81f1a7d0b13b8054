package attribution

import (
	"context"
	"time"

	"tagscope/internal/logger"
	"tagscope/internal/store"
	"tagscope/pkg/host"
	"tagscope/pkg/model"
)

// Poller 周期轮询加载器配置，检测 send/load 标志位翻转，
// 将翻转沉淀为短时标签活动证据供归因引擎消费
type Poller struct {
	store   *store.Store
	runtime func() host.Runtime
	tun     model.Tunables
	log     logger.Logger
	prev    map[int]host.TagConfig
}

// NewPoller 创建配置轮询器
func NewPoller(st *store.Store, runtime func() host.Runtime, tun model.Tunables, log logger.Logger) *Poller {
	if log == nil {
		log = logger.NewNop()
	}
	return &Poller{store: st, runtime: runtime, tun: tun.Normalize(), log: log}
}

// Run 按固定间隔轮询直到 ctx 取消
func (p *Poller) Run(ctx context.Context) {
	t := time.NewTicker(p.tun.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Poll()
		}
	}
}

// Poll 执行一轮比对。宿主或其配置钩子缺失时本轮为空操作。
func (p *Poller) Poll() {
	if p.runtime == nil {
		return
	}
	rt := p.runtime()
	if rt == nil {
		return
	}
	cfg, ok := rt.LoaderConfig()
	if !ok {
		return
	}
	for id, cur := range cfg {
		old, known := p.prev[id]
		if known && (cur.Send != old.Send || cur.Load != old.Load) {
			p.store.TouchActivity(id, model.SourceLoaderPoll)
			p.log.Debug("加载器标志位翻转", "tag", id, "send", cur.Send, "load", cur.Load)
		}
	}
	next := make(map[int]host.TagConfig, len(cfg))
	for id, c := range cfg {
		next[id] = c
	}
	p.prev = next
}
