package host

import "sync"

// Scripted 可编程的运行时测试替身：记录入口调用顺序，
// 数据层、加载器配置与工作队列均可随脚本变更。
type Scripted struct {
	mu    sync.Mutex
	data  map[string]any
	cfg   map[int]TagConfig
	wq    []int
	rules map[int]int

	Calls []string

	// OnFire 在 View/Link 被调用时执行，可用于模拟标签求值副作用
	OnFire func(kind string, data map[string]any)
}

// NewScripted 创建测试替身，初始数据层为空映射（钩子存在）
func NewScripted() *Scripted {
	return &Scripted{
		data:  map[string]any{},
		cfg:   map[int]TagConfig{},
		rules: map[int]int{},
	}
}

func (s *Scripted) View(data map[string]any, cb func(), uids []int) {
	s.fire("view", data, cb)
}

func (s *Scripted) Link(data map[string]any, cb func(), uids []int) {
	s.fire("link", data, cb)
}

func (s *Scripted) fire(kind string, data map[string]any, cb func()) {
	s.mu.Lock()
	s.Calls = append(s.Calls, kind)
	for k, v := range data {
		s.data[k] = v
	}
	hook := s.OnFire
	s.mu.Unlock()
	if hook != nil {
		hook(kind, data)
	}
	if cb != nil {
		cb()
	}
}

func (s *Scripted) DataLayer() (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data, true
}

func (s *Scripted) SetData(k string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[k] = v
}

func (s *Scripted) LoaderConfig() (map[int]TagConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]TagConfig, len(s.cfg))
	for k, v := range s.cfg {
		out[k] = v
	}
	return out, true
}

func (s *Scripted) SetTag(id int, cfg TagConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg[id] = cfg
}

func (s *Scripted) WorkQueue() ([]int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.wq...), true
}

func (s *Scripted) PushWork(uid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wq = append(s.wq, uid)
}

func (s *Scripted) RuleDiag() (map[int]int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]int, len(s.rules))
	for k, v := range s.rules {
		out[k] = v
	}
	return out, true
}

func (s *Scripted) SetRule(id, v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[id] = v
}
