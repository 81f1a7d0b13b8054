// Package firing 包装宿主运行时的 view/link 公开入口：
// 调用前同步捕获数据层快照，调用后经固定延迟调度归因、差分与校验，
// 全程不阻塞调用方的控制流。
package firing

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"tagscope/internal/attribution"
	"tagscope/internal/logger"
	"tagscope/internal/store"
	"tagscope/internal/validate"
	"tagscope/pkg/host"
	"tagscope/pkg/model"
)

// Interceptor 触发拦截器。Start/Stop 可反复切换：
// Stop 还原的是原始运行时引用本身，摘除后零残留开销。
type Interceptor struct {
	store     *store.Store
	engine    *attribution.Engine
	validator *validate.Validator
	tun       model.Tunables
	log       logger.Logger

	mu      sync.Mutex
	inner   host.Runtime
	wrapped *wrappedRuntime
	started bool

	now   func() time.Time
	after func(time.Duration, func()) *time.Timer

	// OnEvent 在完整事件入库后回调（持久化、刷新等由上层接线）
	OnEvent func(*model.FiringEvent)
}

// New 创建触发拦截器
func New(st *store.Store, engine *attribution.Engine, validator *validate.Validator, tun model.Tunables, log logger.Logger) *Interceptor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Interceptor{
		store:     st,
		engine:    engine,
		validator: validator,
		tun:       tun.Normalize(),
		log:       log,
		now:       time.Now,
		after:     time.AfterFunc,
	}
}

// SetClock 注入时钟与定时器，测试用
func (i *Interceptor) SetClock(now func() time.Time, after func(time.Duration, func()) *time.Timer) {
	i.now = now
	i.after = after
}

// Start 包装运行时并返回已拦截的句柄。幂等：传入已包装的
// 句柄时复用其内部的原始引用，绝不形成包装链。
func (i *Interceptor) Start(rt host.Runtime) host.Runtime {
	i.mu.Lock()
	defer i.mu.Unlock()
	if w, ok := rt.(*wrappedRuntime); ok {
		rt = w.inner
	}
	if rt == nil {
		rt = host.Absent()
	}
	i.inner = rt
	i.wrapped = &wrappedRuntime{i: i, inner: rt}
	i.started = true
	i.log.Info("触发拦截已启用", "availability", host.Probe(rt).String())
	return i.wrapped
}

// Stop 停止拦截并返回原始运行时引用
func (i *Interceptor) Stop() host.Runtime {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.started = false
	i.wrapped = nil
	i.log.Info("触发拦截已停用")
	return i.inner
}

// Runtime 返回当前应被调用方使用的句柄
func (i *Interceptor) Runtime() host.Runtime {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.started && i.wrapped != nil {
		return i.wrapped
	}
	if i.inner != nil {
		return i.inner
	}
	return host.Absent()
}

type wrappedRuntime struct {
	i     *Interceptor
	inner host.Runtime
}

func (w *wrappedRuntime) View(data map[string]any, cb func(), uids []int) {
	w.i.fire(model.EventView, data, cb, uids)
}

func (w *wrappedRuntime) Link(data map[string]any, cb func(), uids []int) {
	w.i.fire(model.EventLink, data, cb, uids)
}

func (w *wrappedRuntime) DataLayer() (map[string]any, bool) { return w.inner.DataLayer() }
func (w *wrappedRuntime) LoaderConfig() (map[int]host.TagConfig, bool) {
	return w.inner.LoaderConfig()
}
func (w *wrappedRuntime) WorkQueue() ([]int, bool)      { return w.inner.WorkQueue() }
func (w *wrappedRuntime) RuleDiag() (map[int]int, bool) { return w.inner.RuleDiag() }

// fire 的结构保证顺序：前快照先于原始调用，原始调用先于后快照调度
func (i *Interceptor) fire(kind model.EventType, data map[string]any, cb func(), uids []int) {
	ev := &model.FiringEvent{
		ID:        uuid.NewString(),
		Type:      kind,
		Payload:   Clone(data),
		Timestamp: i.now(),
	}

	inner := i.currentInner()
	if dl, ok := inner.DataLayer(); ok {
		ev.PreDataLayer = Clone(dl)
	}

	switch kind {
	case model.EventLink:
		inner.Link(data, cb, uids)
	default:
		inner.View(data, cb, uids)
	}

	i.after(i.tun.PostSnapshotDelay, func() {
		i.complete(ev, kind, data, inner)
	})
}

// complete 后置步骤：后快照、归因、差分、校验、入库。
// 任何一步失败只降级该数据点，不得越过本函数边界。
func (i *Interceptor) complete(ev *model.FiringEvent, kind model.EventType, data map[string]any, inner host.Runtime) {
	defer func() {
		if r := recover(); r != nil {
			i.log.Warn("事件后置流水线异常，已降级", "panic", r)
		}
	}()

	if dl, ok := inner.DataLayer(); ok {
		ev.PostDataLayer = Clone(dl)
	}

	results, tags := i.validator.Validate(kind, data)
	ev.FiredTagIDs = tags
	ev.Results = results
	ev.Diff = Diff(ev.PreDataLayer, ev.PostDataLayer)

	i.store.AppendEvent(ev)
	i.validator.ScheduleConfirm(ev.ID, len(results)-1, tags)
	i.store.NotifyRefresh()

	if i.OnEvent != nil {
		i.OnEvent(ev)
	}
}

func (i *Interceptor) currentInner() host.Runtime {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.inner != nil {
		return i.inner
	}
	return host.Absent()
}
