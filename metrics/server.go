package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ceyewan/fabric/clog"
)

// Server 以 HTTP 暴露 Prometheus 指标，实现 Start/Stop 以便挂入生命周期管理
type Server struct {
	cfg    *Config
	meter  Meter
	logger clog.Logger
	srv    *http.Server
}

// NewServer 创建指标服务。cfg.Port 为 0 或 Meter 未启用时 Start 为空操作。
func NewServer(cfg *Config, meter Meter, logger clog.Logger) *Server {
	if logger == nil {
		logger = clog.Discard()
	}
	return &Server{cfg: cfg, meter: meter, logger: logger.WithNamespace("metrics")}
}

// Start 监听端口并在后台提供服务
func (s *Server) Start(ctx context.Context) error {
	hp, ok := s.meter.(interface{ Handler() http.Handler })
	if !ok || s.cfg == nil || s.cfg.Port <= 0 {
		return nil
	}
	s.cfg.setDefaults()

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen metrics %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, hp.Handler())
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	s.logger.Info("metrics server started", clog.String("addr", addr), clog.String("path", s.cfg.Path))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", clog.Error(err))
		}
	}()
	return nil
}

// Stop 关闭 HTTP 服务并刷新 Meter
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.srv != nil {
		err = s.srv.Shutdown(ctx)
	}
	if serr := s.meter.Shutdown(ctx); serr != nil && err == nil {
		err = serr
	}
	return err
}
