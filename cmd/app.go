package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"circlebridge/internal/camera"
	"circlebridge/internal/config"
	"circlebridge/internal/ffmpeg"
	"circlebridge/internal/logicircle"
	"circlebridge/internal/metrics"
	"circlebridge/internal/server"
)

// app はserveで起動するコンポーネント一式
type app struct {
	cfg     *config.Config
	manager *camera.DefaultManager
	server  *server.Server
	logger  zerolog.Logger
}

// newClient は設定からクラウドAPIクライアントを作成する
func newClient(cfg *config.Config, recorder logicircle.Recorder, logger zerolog.Logger) (*logicircle.Client, error) {
	if !cfg.HasSessionCookie() {
		return nil, fmt.Errorf("%w: logi_circle.session_cookie か LOGI_CIRCLE_SESSION を設定してください", logicircle.ErrNotLoggedIn)
	}

	return logicircle.NewClient(logicircle.Options{
		BaseURL:       cfg.LogiCircle.APIURL,
		SessionCookie: cfg.LogiCircle.SessionCookie,
		Timeout:       cfg.LogiCircle.RequestTimeout,
		RetryCount:    cfg.LogiCircle.RetryCount,
		Recorder:      recorder,
	}, logger)
}

// buildApp はカメラを取得し、マネージャーとHTTPサーバーを組み立てる
func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	transcoder := ffmpeg.New(cfg.FFmpeg.Binary, cfg.FFmpeg.ExtraArguments, logger)
	if err := transcoder.Probe(ctx); err != nil {
		// ストリームと録画以外は動くので起動は続ける
		logger.Warn().Err(err).Str("binary", cfg.FFmpeg.Binary).Msg("ffmpegが見つかりません")
	}

	client, err := newClient(cfg, transcoder, logger)
	if err != nil {
		return nil, err
	}

	devices, err := client.Cameras(ctx)
	if err != nil {
		return nil, fmt.Errorf("カメラの取得に失敗: %w", err)
	}

	handles := make([]camera.DeviceHandle, 0, len(devices))
	for _, device := range devices {
		handles = append(handles, device)
	}

	manager := camera.NewDefaultManager(logger)
	manager.SetScanInterval(cfg.Camera.ScanInterval)
	if err := camera.SetupPlatform(manager, handles, camera.PlatformDeps{
		Transcoder: transcoder,
		Paths:      cfg,
		Logger:     logger,
	}); err != nil {
		return nil, fmt.Errorf("カメラの登録に失敗: %w", err)
	}

	events := server.NewEvents(logger)
	manager.SetUpdateHandler(events.PublishCamera)

	srv := server.New(cfg, server.Deps{
		Manager: manager,
		Metrics: metrics.NewRegistry(manager),
		Events:  events,
		Logger:  logger,
	})

	return &app{
		cfg:     cfg,
		manager: manager,
		server:  srv,
		logger:  logger,
	}, nil
}

// run はctxが終わるかシグナルを受けるまでサーバーを動かす
func (a *app) run(ctx context.Context) error {
	if err := a.manager.Start(ctx); err != nil {
		return fmt.Errorf("カメラマネージャーの開始に失敗: %w", err)
	}

	serveErr := a.server.Start(ctx)

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return errors.Join(serveErr, a.manager.Stop(stopCtx))
}
