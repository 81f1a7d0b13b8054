package service

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"tagscope/internal/classify"
	"tagscope/internal/logger"
	"tagscope/pkg/host"
	"tagscope/pkg/model"
	"tagscope/pkg/transport"
)

// Service 全局监测服务：按会话管理各自独立的监测装配
type Service struct {
	mu       sync.RWMutex
	monitors map[model.SessionID]*Monitor
	log      logger.Logger
}

// New 创建监测服务
func New(l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNop()
	}
	return &Service{
		monitors: make(map[model.SessionID]*Monitor),
		log:      l,
	}
}

// StartSession 启动监测会话。运行时或传输栈缺省时
// 分别退化为缺席运行时与裸 HTTP 栈。
func (s *Service) StartSession(cfg model.SessionConfig, rt host.Runtime, stack *transport.Stack) (model.SessionID, error) {
	if rt == nil {
		rt = host.Absent()
	}
	if stack == nil {
		stack = transport.NewHTTPStack(nil)
	}

	id := model.SessionID(uuid.NewString())
	m := newMonitor(id, cfg, s.log)
	m.start(rt, stack)

	s.mu.Lock()
	s.monitors[id] = m
	s.mu.Unlock()

	s.log.Info("创建监测会话", "sessionID", string(id), "pageHost", cfg.PageHost)
	return id, nil
}

// StopSession 停止会话
func (s *Service) StopSession(id model.SessionID) error {
	s.mu.Lock()
	m, ok := s.monitors[id]
	if ok {
		delete(s.monitors, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("session not found")
	}
	m.stop()
	s.log.Info("销毁监测会话", "sessionID", string(id))
	return nil
}

// Sessions 列出所有活动会话
func (s *Service) Sessions() []model.SessionID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]model.SessionID, 0, len(s.monitors))
	for id := range s.monitors {
		list = append(list, id)
	}
	return list
}

// Runtime 返回会话的已包装运行时句柄
func (s *Service) Runtime(id model.SessionID) (host.Runtime, error) {
	m, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return m.runtime, nil
}

// Stack 返回会话的已包装传输栈
func (s *Service) Stack(id model.SessionID) (*transport.Stack, error) {
	m, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return m.stack, nil
}

// FireView 触发一次 view 事件
func (s *Service) FireView(id model.SessionID, data map[string]any) error {
	m, err := s.get(id)
	if err != nil {
		return err
	}
	m.runtime.View(data, nil, nil)
	return nil
}

// FireLink 触发一次 link 事件
func (s *Service) FireLink(id model.SessionID, data map[string]any) error {
	m, err := s.get(id)
	if err != nil {
		return err
	}
	m.runtime.Link(data, nil, nil)
	return nil
}

// Ingest 摄入外部采集的网络记录。相关性与厂商在入口处
// 一次性判定，之后不再改写。
func (s *Service) Ingest(id model.SessionID, rec model.NetworkRecord) error {
	m, err := s.get(id)
	if err != nil {
		return err
	}
	rec.TagRelated = classify.TagRelated(rec.URL, m.cfg.PageHost)
	rec.Vendor = classify.Vendor(rec.URL)
	m.store.Ingest(rec)
	return nil
}

// Requests 网络记录快照
func (s *Service) Requests(id model.SessionID) ([]model.NetworkRecord, error) {
	m, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return m.store.Requests(), nil
}

// Events 触发事件快照
func (s *Service) Events(id model.SessionID) ([]model.FiringEvent, error) {
	m, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return m.store.Events(), nil
}

// Console 控制台行快照
func (s *Service) Console(id model.SessionID) ([]model.ConsoleLine, error) {
	m, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return m.store.Console(), nil
}

// Parameters 提取某条网络记录的参数
func (s *Service) Parameters(id model.SessionID, recordID string) ([]model.Parameter, error) {
	m, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return m.parameters(recordID)
}

// Stats 聚合统计
func (s *Service) Stats(id model.SessionID) (model.Stats, error) {
	m, err := s.get(id)
	if err != nil {
		return model.Stats{}, err
	}
	return m.store.Stats(), nil
}

// RequestRefresh 请求一次节流刷新
func (s *Service) RequestRefresh(id model.SessionID) error {
	m, err := s.get(id)
	if err != nil {
		return err
	}
	m.store.NotifyRefresh()
	return nil
}

// OnRefresh 注册刷新回调
func (s *Service) OnRefresh(id model.SessionID, fn func()) error {
	m, err := s.get(id)
	if err != nil {
		return err
	}
	m.store.SetRefreshFunc(fn)
	return nil
}

func (s *Service) get(id model.SessionID) (*Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.monitors[id]
	if !ok {
		return nil, fmt.Errorf("session not found")
	}
	return m, nil
}
