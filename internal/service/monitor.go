package service

import (
	"context"
	"fmt"

	"tagscope/internal/attribution"
	"tagscope/internal/cdpingest"
	"tagscope/internal/firing"
	"tagscope/internal/intercept"
	"tagscope/internal/logger"
	"tagscope/internal/params"
	"tagscope/internal/storage"
	"tagscope/internal/store"
	"tagscope/internal/validate"
	"tagscope/pkg/host"
	"tagscope/pkg/model"
	"tagscope/pkg/transport"
)

// Monitor 单个会话的完整装配：事件存储、传输包装、
// 触发拦截、归因引擎、装载器轮询与事件持久化。
type Monitor struct {
	id  model.SessionID
	cfg model.SessionConfig
	log logger.Logger

	store     *store.Store
	engine    *attribution.Engine
	validator *validate.Validator
	firing    *firing.Interceptor
	poller    *attribution.Poller
	cache     *storage.Cache
	cdp       *cdpingest.Manager

	stack   *transport.Stack
	runtime host.Runtime
	cancel  context.CancelFunc
}

func newMonitor(id model.SessionID, cfg model.SessionConfig, l logger.Logger) *Monitor {
	cfg.Tunables = cfg.Tunables.Normalize()
	m := &Monitor{id: id, cfg: cfg, log: l.With("sessionID", string(id))}

	tun := cfg.Tunables
	m.store = store.New(tun, m.log)
	current := func() host.Runtime { return m.firing.Runtime() }
	m.engine = attribution.New(m.store, current, tun, m.log)
	m.validator = validate.New(m.store, m.engine, current, tun, m.log)
	m.firing = firing.New(m.store, m.engine, m.validator, tun, m.log)
	m.poller = attribution.NewPoller(m.store, current, tun, m.log)

	if cfg.CacheDSN != "" {
		cache, err := storage.Open(cfg.CacheDSN, tun.PersistLimit, m.log)
		if err != nil {
			m.log.Warn("事件缓存不可用，本会话降级为纯内存", "err", err)
		} else {
			m.cache = cache
		}
	}
	m.firing.OnEvent = func(ev *model.FiringEvent) {
		m.cache.Save(m.id, ev)
	}

	if cfg.DevToolsURL != "" {
		m.cdp = cdpingest.New(cfg.DevToolsURL, cfg.PageHost, m.store, m.log)
	}
	return m
}

// start 包装传入的运行时与传输栈并启动后台任务。
// CDP 附加失败不致命：本地拦截链路照常工作。
func (m *Monitor) start(rt host.Runtime, base *transport.Stack) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	for _, ev := range m.cache.LoadRecent(m.id, 0) {
		cp := ev
		m.store.AppendEvent(&cp)
	}

	m.runtime = m.firing.Start(rt)
	m.stack = intercept.Instrument(base, m.store, m.cfg.PageHost, m.log)

	go m.store.RunSweeper(ctx)
	go m.poller.Run(ctx)

	if m.cdp != nil {
		if err := m.cdp.Attach(m.cfg.CdpTarget); err != nil {
			m.log.Warn("CDP 目标附加失败", "err", err)
			m.cdp = nil
		} else if err := m.cdp.Enable(); err != nil {
			m.log.Warn("CDP 网络事件订阅失败", "err", err)
			m.cdp.Detach()
			m.cdp = nil
		}
	}
}

// stop 停止后台任务并还原被包装的引用
func (m *Monitor) stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.firing.Stop()
	m.stack = intercept.Uninstrument(m.stack)
	if m.cdp != nil {
		if err := m.cdp.Detach(); err != nil {
			m.log.Warn("CDP 分离失败", "err", err)
		}
	}
}

// parameters 提取指定网络记录的参数
func (m *Monitor) parameters(recordID string) ([]model.Parameter, error) {
	for _, rec := range m.store.Requests() {
		if rec.ID == recordID {
			return params.Extract(&rec), nil
		}
	}
	return nil, fmt.Errorf("record not found")
}
