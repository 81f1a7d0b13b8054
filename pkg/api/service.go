package api

import (
	"tagscope/internal/logger"
	"tagscope/internal/service"
	"tagscope/pkg/host"
	"tagscope/pkg/model"
	"tagscope/pkg/transport"
)

// Service 服务接口
type Service interface {
	// StartSession 启动监测会话，包装宿主运行时与传输栈
	StartSession(cfg model.SessionConfig, rt host.Runtime, stack *transport.Stack) (model.SessionID, error)

	// StopSession 停止会话并还原被包装的引用
	StopSession(id model.SessionID) error

	// Sessions 列出活动会话
	Sessions() []model.SessionID

	// Runtime 返回会话的已包装运行时句柄
	Runtime(id model.SessionID) (host.Runtime, error)

	// Stack 返回会话的已包装传输栈
	Stack(id model.SessionID) (*transport.Stack, error)

	// FireView 通过包装句柄触发一次 view 事件
	FireView(id model.SessionID, data map[string]any) error

	// FireLink 通过包装句柄触发一次 link 事件
	FireLink(id model.SessionID, data map[string]any) error

	// Ingest 摄入外部采集的网络记录
	Ingest(id model.SessionID, rec model.NetworkRecord) error

	// Requests 网络记录快照，新者在前
	Requests(id model.SessionID) ([]model.NetworkRecord, error)

	// Events 触发事件快照，新者在前
	Events(id model.SessionID) ([]model.FiringEvent, error)

	// Console 控制台行快照
	Console(id model.SessionID) ([]model.ConsoleLine, error)

	// Parameters 提取某条网络记录的参数
	Parameters(id model.SessionID, recordID string) ([]model.Parameter, error)

	// Stats 聚合统计
	Stats(id model.SessionID) (model.Stats, error)

	// RequestRefresh 请求一次节流刷新
	RequestRefresh(id model.SessionID) error

	// OnRefresh 注册刷新回调（推送接线用）
	OnRefresh(id model.SessionID, fn func()) error
}

// NewService 创建并返回服务接口实现
func NewService(l logger.Logger) Service {
	return service.New(l)
}
