// Package httpapi 提供面板的只读 HTTP 接口：快照查询、外部摄入、
// 刷新请求与 WebSocket 推送。面板本体不在本服务内实现。
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"tagscope/internal/logger"
	"tagscope/pkg/api"
	"tagscope/pkg/model"
)

// Server 面板接口服务
type Server struct {
	svc api.Service
	id  model.SessionID
	hub *Hub
	log logger.Logger

	Router *chi.Mux
	srv    *http.Server
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 面板与服务同机，不做来源校验
	CheckOrigin: func(*http.Request) bool { return true },
}

// New 创建面板接口服务并注册路由，刷新通知接到 WebSocket 广播
func New(port int, svc api.Service, id model.SessionID, l logger.Logger) *Server {
	if l == nil {
		l = logger.NewNop()
	}
	s := &Server{
		svc: svc,
		id:  id,
		hub: NewHub(l),
		log: l,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Get("/requests", s.handleRequests)
		r.Get("/events", s.handleEvents)
		r.Get("/console", s.handleConsole)
		r.Get("/stats", s.handleStats)
		r.Get("/requests/{recordID}/parameters", s.handleParameters)
		r.Post("/ingest", s.handleIngest)
		r.Post("/refresh", s.handleRefresh)
	})
	r.Get("/ws", s.handleWS)
	s.Router = r
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := svc.OnRefresh(id, s.hub.Broadcast); err != nil {
		l.Warn("刷新回调注册失败", "err", err)
	}
	return s
}

// Start 阻塞式启动服务
func (s *Server) Start() error {
	s.log.Info("面板接口启动", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.Requests(s.id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, recs)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := s.svc.Events(s.id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, evs)
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	lines, err := s.svc.Console(s.id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, lines)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(s.id)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, stats)
}

func (s *Server) handleParameters(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordID")
	ps, err := s.svc.Parameters(s.id, recordID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, ps)
}

// handleIngest 接收外部采集方推送的网络记录
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var rec model.NetworkRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if rec.URL == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("url is required"))
		return
	}
	if err := s.svc.Ingest(s.id, rec); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RequestRefresh(s.id); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWS 升级连接并注册到广播集合，读循环只用于感知对端关闭
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket 升级失败", "err", err)
		return
	}
	wc := s.hub.add(conn)
	go func() {
		defer s.hub.remove(wc)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("响应编码失败", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
