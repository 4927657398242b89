package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"circlebridge/internal/camera"
	"circlebridge/internal/config"
	"circlebridge/internal/metrics"
)

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	handler    *Handler
	engine     *gin.Engine
	httpServer *http.Server
	logger     zerolog.Logger

	// 実際にリッスンしているアドレス
	addrCh chan net.Addr

	// シャットダウン開始時に中継中のストリームを止める
	stopStreams context.CancelFunc
}

// Deps はServerが使う依存
type Deps struct {
	Manager camera.Manager
	Metrics *metrics.Registry
	Events  *Events
	Logger  zerolog.Logger
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)

	streams, stopStreams := context.WithCancel(context.Background())

	handler := &Handler{
		config:  cfg,
		manager: deps.Manager,
		metrics: deps.Metrics,
		events:  deps.Events,
		streams: streams,
		logger:  deps.Logger,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(deps.Logger))
	handler.Register(engine)

	httpServer := &http.Server{
		Addr:        cfg.ServerAddress(),
		Handler:     engine,
		ReadTimeout: cfg.Server.ReadTimeout,
		// ストリーミング用に0なら無効
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	// http.Server.Shutdownはリクエストのコンテキストをキャンセルしない
	httpServer.RegisterOnShutdown(stopStreams)

	return &Server{
		config:      cfg,
		handler:     handler,
		engine:      engine,
		httpServer:  httpServer,
		logger:      deps.Logger,
		addrCh:      make(chan net.Addr, 1),
		stopStreams: stopStreams,
	}
}

// Handler はルーティング済みのhttp.Handlerを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr はリッスン開始後のアドレスを返す
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case addr := <-s.addrCh:
		s.addrCh <- addr
		return addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start はサーバーを起動し、ctxの終了かシグナルを受けるまでブロックする
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}
	s.addrCh <- listener.Addr()

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		s.logger.Info().Str("addr", listener.Addr().String()).Msg("HTTPサーバーを起動しています")
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		s.logger.Info().Msg("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.logger.Info().Str("signal", sig.String()).Msg("シグナルを受信しました")
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("サーバーをシャットダウンしています...")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// SSEとMJPEGの接続は自分からは切れないので先に閉じる
	s.stopStreams()
	if s.handler.events != nil {
		s.handler.events.Close()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.logger.Info().Msg("サーバーが正常にシャットダウンされました")
	return nil
}

// requestLogger はリクエストごとにアクセスログを出す
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Debug()
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("リクエストを処理しました")
	}
}
