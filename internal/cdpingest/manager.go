// Package cdpingest 经 Chrome DevTools 协议观测真实浏览器的网络流量，
// 将其作为外部事件推入会话状态。浏览上下文无法被传输层直接插桩时
// 使用这条旁路。
package cdpingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/rpcc"

	"tagscope/internal/logger"
	"tagscope/internal/store"
	"tagscope/pkg/model"
)

// Manager CDP 摄入源
type Manager struct {
	devtoolsURL string
	pageHost    string
	store       *store.Store
	log         logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	conn   *rpcc.Conn
	client *cdp.Client

	mu      sync.Mutex
	pending map[network.RequestID]string
	started map[network.RequestID]time.Time
}

// New 创建摄入源
func New(devtoolsURL, pageHost string, st *store.Store, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		devtoolsURL: devtoolsURL,
		pageHost:    pageHost,
		store:       st,
		log:         log,
		pending:     make(map[network.RequestID]string),
		started:     make(map[network.RequestID]time.Time),
	}
}

// Attach 附加到目标页面，target 为空时取第一个可用目标
func (m *Manager) Attach(target string) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.ctx = ctx
	m.cancel = cancel
	dt := devtool.New(m.devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		return err
	}
	var sel *devtool.Target
	for i := range targets {
		if string(targets[i].ID) == target || target == "" {
			sel = targets[i]
			if target == "" {
				break
			}
		}
	}
	if sel == nil {
		return fmt.Errorf("no target")
	}
	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		return err
	}
	m.conn = conn
	m.client = cdp.NewClient(conn)
	return nil
}

// Detach 断开连接并停止消费
func (m *Manager) Detach() error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

// Enable 开启网络域事件并启动消费
func (m *Manager) Enable() error {
	if m.client == nil {
		return fmt.Errorf("not attached")
	}
	if err := m.client.Network.Enable(m.ctx, nil); err != nil {
		return err
	}
	go m.consume()
	return nil
}

// consume 持续消费四路网络事件流，任一流终止即退出
func (m *Manager) consume() {
	rws, err := m.client.Network.RequestWillBeSent(m.ctx)
	if err != nil {
		m.log.Err(err, "订阅请求事件流失败")
		return
	}
	defer rws.Close()
	rr, err := m.client.Network.ResponseReceived(m.ctx)
	if err != nil {
		m.log.Err(err, "订阅响应事件流失败")
		return
	}
	defer rr.Close()
	lf, err := m.client.Network.LoadingFinished(m.ctx)
	if err != nil {
		m.log.Err(err, "订阅完成事件流失败")
		return
	}
	defer lf.Close()
	lfa, err := m.client.Network.LoadingFailed(m.ctx)
	if err != nil {
		m.log.Err(err, "订阅失败事件流失败")
		return
	}
	defer lfa.Close()

	m.log.Info("开始消费 CDP 网络事件流", "devtools", m.devtoolsURL)
	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		for {
			ev, err := rws.Recv()
			if err != nil {
				return
			}
			m.onRequest(ev)
		}
	}()
	go func() {
		defer wg.Done()
		for {
			ev, err := rr.Recv()
			if err != nil {
				return
			}
			m.onResponse(ev)
		}
	}()
	go func() {
		defer wg.Done()
		for {
			ev, err := lf.Recv()
			if err != nil {
				return
			}
			m.onFinished(ev)
		}
	}()
	go func() {
		defer wg.Done()
		for {
			ev, err := lfa.Recv()
			if err != nil {
				return
			}
			m.onFailed(ev)
		}
	}()
	wg.Wait()
	m.log.Info("CDP 网络事件流已终止")
}

func (m *Manager) onRequest(ev *network.RequestWillBeSentReply) {
	rec := toRecord(ev, m.pageHost)
	m.store.AppendRequest(rec)
	m.store.AppendConsole(fmt.Sprintf("cdp %s %s", rec.Method, rec.URL))
	m.mu.Lock()
	m.pending[ev.RequestID] = rec.ID
	m.started[ev.RequestID] = time.Now()
	m.mu.Unlock()
}

func (m *Manager) onResponse(ev *network.ResponseReceivedReply) {
	id, ok := m.recordID(ev.RequestID, false)
	if !ok {
		return
	}
	m.store.UpdateRecord(id, func(r *model.NetworkRecord) {
		r.StatusCode = ev.Response.Status
	})
}

func (m *Manager) onFinished(ev *network.LoadingFinishedReply) {
	id, ok := m.recordID(ev.RequestID, true)
	if !ok {
		return
	}
	start := m.startTime(ev.RequestID)
	var related bool
	m.store.UpdateRecord(id, func(r *model.NetworkRecord) {
		r.State = model.StateDone
		r.ResponseSize = int64(ev.EncodedDataLength)
		if !start.IsZero() {
			r.Duration = time.Since(start)
		}
		related = r.TagRelated
	})
	if related {
		m.store.NotifyRefresh()
	}
}

func (m *Manager) onFailed(ev *network.LoadingFailedReply) {
	id, ok := m.recordID(ev.RequestID, true)
	if !ok {
		return
	}
	start := m.startTime(ev.RequestID)
	m.store.UpdateRecord(id, func(r *model.NetworkRecord) {
		r.State = model.StateError
		r.Error = ev.ErrorText
		if !start.IsZero() {
			r.Duration = time.Since(start)
		}
	})
}

// recordID 查找请求对应的记录 ID，drop 为真时同时移除映射
func (m *Manager) recordID(rid network.RequestID, drop bool) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.pending[rid]
	if drop {
		delete(m.pending, rid)
	}
	return id, ok
}

func (m *Manager) startTime(rid network.RequestID) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.started[rid]
	delete(m.started, rid)
	return t
}
