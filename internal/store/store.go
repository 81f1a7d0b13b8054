// Package store 持有页面生命周期内的全部调试状态：网络请求、控制台行、
// 触发事件历史与标签活动证据。所有实例由 Store 独占，面板只拿快照副本。
package store

import (
	"context"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"

	"tagscope/internal/classify"
	"tagscope/internal/logger"
	"tagscope/pkg/model"
)

type activityKey struct {
	tagID  int
	source model.EvidenceSource
}

// Store 单个会话的调试状态容器
type Store struct {
	mu  sync.RWMutex
	tun model.Tunables
	log logger.Logger
	now func() time.Time

	requests []*model.NetworkRecord
	console  []model.ConsoleLine
	events   []*model.FiringEvent
	activity map[activityKey]time.Time

	refreshMu sync.Mutex
	refresh   func()
	debounced func(func())
}

// New 创建状态容器
func New(tun model.Tunables, log logger.Logger) *Store {
	tun = tun.Normalize()
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{
		tun:       tun,
		log:       log,
		now:       time.Now,
		activity:  make(map[activityKey]time.Time),
		debounced: debounce.New(tun.RefreshThrottle),
	}
}

// SetClock 注入时钟，测试用
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetRefreshFunc 注册面板刷新回调
func (s *Store) SetRefreshFunc(fn func()) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	s.refresh = fn
}

// NotifyRefresh 请求面板刷新。高频请求在节流窗口内合并为
// 单次尾随调用，避免突发流量造成刷新风暴。
func (s *Store) NotifyRefresh() {
	s.refreshMu.Lock()
	fn := s.refresh
	deb := s.debounced
	s.refreshMu.Unlock()
	if fn == nil {
		return
	}
	deb(fn)
}

// AppendRequest 登记一条新记录并执行 FIFO 淘汰。
// 维护不变量：TagRelated 的记录必有非空厂商名。
func (s *Store) AppendRequest(rec *model.NetworkRecord) {
	if rec == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Start.IsZero() {
		rec.Start = s.clock()
	}
	if rec.State == "" {
		rec.State = model.StatePending
	}
	if rec.TagRelated && rec.Vendor == "" {
		rec.Vendor = classify.UnknownVendor
	}
	s.mu.Lock()
	s.requests = append(s.requests, rec)
	if len(s.requests) > s.tun.RequestCap {
		s.requests = s.requests[len(s.requests)-s.tun.RequestCap:]
	}
	s.mu.Unlock()
}

// CompletePending 按 URL+传输方式定位最早的 pending 记录并完成它，
// 并列时取第一条。返回完成后的副本，未找到返回 nil。
func (s *Store) CompletePending(url string, tr model.Transport, fill func(*model.NetworkRecord)) *model.NetworkRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.requests {
		if rec.State != model.StatePending || rec.Transport != tr || rec.URL != url {
			continue
		}
		fill(rec)
		if rec.State == model.StatePending {
			rec.State = model.StateDone
		}
		cp := *rec
		return &cp
	}
	return nil
}

// UpdateRecord 按 ID 就地更新记录（信标 Blob 异步解码后补写载荷）
func (s *Store) UpdateRecord(id string, fn func(*model.NetworkRecord)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.requests {
		if rec.ID == id {
			fn(rec)
			return true
		}
	}
	return false
}

// Ingest 外部网络事件摄入点：绕过传输层包装的窄入口，
// 供 CDP 源或隔离浏览上下文中的观测方推送记录。
func (s *Store) Ingest(rec model.NetworkRecord) *model.NetworkRecord {
	rec.External = true
	if rec.State == "" {
		rec.State = model.StateDone
	}
	cp := rec
	s.AppendRequest(&cp)
	if cp.TagRelated {
		s.NotifyRefresh()
	}
	return &cp
}

// AppendConsole 追加一行控制台输出
func (s *Store) AppendConsole(text string) {
	line := model.ConsoleLine{At: s.clock(), Text: text}
	s.mu.Lock()
	s.console = append(s.console, line)
	if len(s.console) > s.tun.ConsoleCap {
		s.console = s.console[len(s.console)-s.tun.ConsoleCap:]
	}
	s.mu.Unlock()
}

// ConsoleSince 返回窗口内的控制台行（副本）
func (s *Store) ConsoleSince(window time.Duration) []model.ConsoleLine {
	cutoff := s.clock().Add(-window)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ConsoleLine
	for _, l := range s.console {
		if l.At.After(cutoff) {
			out = append(out, l)
		}
	}
	return out
}

// RequestsSince 返回窗口内开始的请求记录副本
func (s *Store) RequestsSince(window time.Duration) []model.NetworkRecord {
	cutoff := s.clock().Add(-window)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.NetworkRecord
	for _, r := range s.requests {
		if r.Start.After(cutoff) {
			out = append(out, *r)
		}
	}
	return out
}

// AppendEvent 追加触发事件并执行 FIFO 淘汰
func (s *Store) AppendEvent(ev *model.FiringEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.tun.EventCap {
		s.events = s.events[len(s.events)-s.tun.EventCap:]
	}
	s.mu.Unlock()
}

// UpdateEventResult 就地升级某条校验结果（异步网络确认用）。
// 事件可能已被环形淘汰，此时返回 false。
func (s *Store) UpdateEventResult(eventID string, idx int, res model.ValidationResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.ID != eventID {
			continue
		}
		if idx < 0 || idx >= len(ev.Results) {
			return false
		}
		ev.Results[idx] = res
		return true
	}
	return false
}

// TouchActivity 创建或刷新一条标签活动证据
func (s *Store) TouchActivity(tagID int, src model.EvidenceSource) {
	s.mu.Lock()
	s.activity[activityKey{tagID, src}] = s.now()
	s.mu.Unlock()
}

// ActivitySince 返回窗口内的活动证据；同一标签的多来源记录
// 原样返回，由归因引擎负责合并去重
func (s *Store) ActivitySince(window time.Duration) []model.TagActivityRecord {
	cutoff := s.clock().Add(-window)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TagActivityRecord
	for k, seen := range s.activity {
		if seen.After(cutoff) {
			out = append(out, model.TagActivityRecord{TagID: k.tagID, LastSeen: seen, Source: k.source})
		}
	}
	return out
}

// SweepStale 清理超龄的活动证据。这是环形淘汰之外唯一允许的
// 删除路径，判据只用年龄阈值，不用下标。
func (s *Store) SweepStale() int {
	cutoff := s.clock().Add(-s.tun.ActivityTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, seen := range s.activity {
		if seen.Before(cutoff) {
			delete(s.activity, k)
			n++
		}
	}
	return n
}

// RunSweeper 周期执行过期清理，直到 ctx 取消
func (s *Store) RunSweeper(ctx context.Context) {
	t := time.NewTicker(s.tun.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.SweepStale(); n > 0 {
				s.log.Debug("清理过期活动证据", "count", n)
			}
		}
	}
}

// Requests 返回全部请求记录副本，新者在前
func (s *Store) Requests() []model.NetworkRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.NetworkRecord, 0, len(s.requests))
	for i := len(s.requests) - 1; i >= 0; i-- {
		out = append(out, *s.requests[i])
	}
	return out
}

// Events 返回触发事件历史副本，新者在前。Results 会被异步
// 网络确认就地升级，快照必须持有独立底层数组。
func (s *Store) Events() []model.FiringEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.FiringEvent, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0; i-- {
		cp := *s.events[i]
		cp.Results = append([]model.ValidationResult(nil), cp.Results...)
		cp.FiredTagIDs = append([]int(nil), cp.FiredTagIDs...)
		out = append(out, cp)
	}
	return out
}

// Console 返回控制台行副本，旧者在前
func (s *Store) Console() []model.ConsoleLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ConsoleLine, len(s.console))
	copy(out, s.console)
	return out
}

// Stats 汇总会话统计
func (s *Store) Stats() model.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := model.Stats{
		Requests: len(s.requests),
		Events:   len(s.events),
		Console:  len(s.console),
	}
	for _, r := range s.requests {
		if r.TagRelated {
			st.TagRelated++
		}
		if r.State == model.StatePending {
			st.Pending++
		}
	}
	return st
}

func (s *Store) clock() time.Time {
	s.mu.RLock()
	now := s.now
	s.mu.RUnlock()
	return now()
}
