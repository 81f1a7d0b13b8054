package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tagscope/internal/config"
	"tagscope/internal/httpapi"
	"tagscope/internal/logger"
	"tagscope/pkg/api"
	"tagscope/pkg/model"
)

// main 是服务端入口：加载配置、启动监测会话与面板接口
func main() {
	cfgPath := flag.String("config", "", "配置文件路径（YAML）")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		os.Stderr.WriteString("配置加载失败: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Writers: cfg.Log.Writer,
		File:    cfg.Log.File,
	})

	svc := api.NewService(log)
	id, err := svc.StartSession(model.SessionConfig{
		PageHost:    cfg.Monitor.PageHost,
		DevToolsURL: cfg.Monitor.DevToolsURL,
		CdpTarget:   cfg.Monitor.CdpTarget,
		CacheDSN:    cfg.Sqlite.Dsn,
		Tunables:    cfg.Tunables,
	}, nil, nil)
	if err != nil {
		log.Err(err, "监测会话启动失败")
		os.Exit(1)
	}
	log.Info("监测会话就绪", "sessionID", string(id), "pageHost", cfg.Monitor.PageHost)

	srv := httpapi.New(cfg.Server.Port, svc, id, log)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Err(err, "面板接口异常退出")
		}
	case s := <-sig:
		log.Info("收到退出信号", "signal", s.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Err(err, "面板接口关闭失败")
	}
	if err := svc.StopSession(id); err != nil {
		log.Err(err, "监测会话停止失败")
	}
}
