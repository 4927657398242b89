package camera

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrImageUnavailable  = errors.New("静止画を取得できません")
	ErrStreamUnavailable = errors.New("ライブストリームを開けません")
)

// LogiCam は1台のLogi Circleカメラをホストのエンティティとして公開する
type LogiCam struct {
	handle     DeviceHandle
	transcoder Transcoder
	paths      PathPolicy
	logger     zerolog.Logger

	entityID   string
	uniqueID   string
	name       string
	hasBattery bool

	available atomic.Bool
	updatedAt atomic.Int64

	// 起動済みの書き込み
	pending sync.WaitGroup
}

var _ Camera = (*LogiCam)(nil)

// NewLogiCam は新しいLogiCamを作成する
func NewLogiCam(entityID string, handle DeviceHandle, transcoder Transcoder, paths PathPolicy, logger zerolog.Logger) *LogiCam {
	c := &LogiCam{
		handle:     handle,
		transcoder: transcoder,
		paths:      paths,
		entityID:   entityID,
		uniqueID:   handle.ID(),
		name:       handle.Name(),
		hasBattery: handle.SupportsFeature(FeatureBatteryLevel),
	}
	c.logger = logger.With().Str("entity_id", entityID).Logger()
	c.available.Store(true)
	return c
}

func (c *LogiCam) UniqueID() string { return c.uniqueID }

func (c *LogiCam) EntityID() string { return c.entityID }

func (c *LogiCam) Name() string { return c.name }

// SupportedFeatures はストリーミングのソフトスイッチに対応する
func (c *LogiCam) SupportedFeatures() Feature { return SupportOnOff }

func (c *LogiCam) Status() Status {
	if c.available.Load() {
		return StatusAvailable
	}
	return StatusUnavailable
}

// Attributes はデバイスハンドルの現在値から属性を組み立てる
func (c *LogiCam) Attributes() Attributes {
	state := c.handle.State()

	attrs := Attributes{
		Attribution:       Attribution,
		BatterySavingMode: onOff(state.BatterySaving),
		IPAddress:         state.IPAddress,
		MicrophoneGain:    state.MicrophoneGain,
	}

	if c.hasBattery {
		charging := state.IsCharging
		level := state.BatteryLevel
		attrs.BatteryCharging = &charging
		attrs.BatteryLevel = &level
	}

	return attrs
}

// Info は現在の状態をCameraInfoにまとめる
func Info(cam Camera) CameraInfo {
	info := CameraInfo{
		EntityID:          cam.EntityID(),
		UniqueID:          cam.UniqueID(),
		Name:              cam.Name(),
		Status:            cam.Status(),
		SupportedFeatures: cam.SupportedFeatures(),
		Attributes:        cam.Attributes(),
	}
	if lc, ok := cam.(*LogiCam); ok {
		if ts := lc.updatedAt.Load(); ts != 0 {
			info.UpdatedAt = time.Unix(0, ts)
		}
	}
	return info
}

func (c *LogiCam) Image(ctx context.Context) ([]byte, error) {
	img, err := c.handle.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageUnavailable, err)
	}
	return img, nil
}

// HandleMJPEGStream は最新アクティビティをトランスコーダー経由でwへ中継する
func (c *LogiCam) HandleMJPEGStream(ctx context.Context, w http.ResponseWriter) (err error) {
	logger := c.logger.With().Str("session", uuid.NewString()).Logger()

	activity, err := c.handle.LastActivity(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStreamUnavailable, err)
	}

	header := fmt.Sprintf("X-Logi-Auth: %s", c.handle.SessionCookie())

	stream, err := c.transcoder.OpenMJPEG(ctx, activity.DownloadURL, header)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStreamUnavailable, err)
	}
	logger.Debug().Str("activity", activity.ID).Msg("ストリームを開始しました")

	defer func() {
		closeErr := stream.Close()
		if closeErr == nil || IsBrokenPipe(closeErr) {
			logger.Debug().Msg("ストリームを終了しました")
			return
		}
		err = errors.Join(err, fmt.Errorf("ストリームのクローズに失敗: %w", closeErr))
	}()

	return ProxyStream(ctx, w, stream, c.transcoder.ContentType())
}

// TurnOn はストリーミングモードを有効にする
func (c *LogiCam) TurnOn(ctx context.Context) error {
	return c.handle.SetStreamingMode(ctx, true)
}

// TurnOff はストリーミングモードを無効にする
func (c *LogiCam) TurnOff(ctx context.Context) error {
	return c.handle.SetStreamingMode(ctx, false)
}

// SetConfig は設定項目を変更する。未知のmodeは何もしない
func (c *LogiCam) SetConfig(ctx context.Context, mode ConfigMode, value bool) error {
	switch mode {
	case ModeLED:
		return c.handle.SetLED(ctx, value)
	case ModePrivacy:
		return c.handle.SetPrivacyMode(ctx, value)
	case ModeBatterySaving:
		return c.handle.SetBatterySavingMode(ctx, value)
	default:
		c.logger.Debug().Str("mode", string(mode)).Msg("未知の設定項目を無視しました")
		return nil
	}
}

// LivestreamSnapshot はライブストリームの静止画をファイルに保存する
func (c *LogiCam) LivestreamSnapshot(ctx context.Context, filename *PathTemplate) {
	path, ok := c.allowedPath(filename)
	if !ok {
		return
	}

	c.shield(ctx, path, func(ctx context.Context) error {
		return c.handle.LivestreamImage(ctx, path)
	})
}

// LivestreamRecord はライブストリームをduration分だけファイルに録画する
func (c *LogiCam) LivestreamRecord(ctx context.Context, filename *PathTemplate, duration time.Duration) {
	path, ok := c.allowedPath(filename)
	if !ok {
		return
	}

	c.shield(ctx, path, func(ctx context.Context) error {
		return c.handle.RecordLivestream(ctx, path, duration)
	})
}

// Update はデバイスの状態を取り込み、可用性を更新する
func (c *LogiCam) Update(ctx context.Context) error {
	if err := c.handle.Update(ctx); err != nil {
		c.available.Store(false)
		return err
	}
	c.available.Store(true)
	c.updatedAt.Store(time.Now().UnixNano())
	return nil
}

func (c *LogiCam) Wait() {
	c.pending.Wait()
}

// allowedPath はテンプレートを描画し、許可リストで判定する
func (c *LogiCam) allowedPath(filename *PathTemplate) (string, bool) {
	path, err := filename.Render(c.entityID)
	if err != nil {
		c.logger.Error().Err(err).Str("template", filename.String()).Msg("ファイル名を生成できません")
		return "", false
	}

	if !c.paths.IsAllowedPath(path) {
		c.logger.Error().Str("path", path).Msgf("%s に書き込めません。パスへのアクセス権がありません", path)
		return "", false
	}

	return path, true
}

// shield は呼び出し元のキャンセルから切り離して fn を実行する
func (c *LogiCam) shield(ctx context.Context, path string, fn func(context.Context) error) {
	detached := context.WithoutCancel(ctx)

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		if err := fn(detached); err != nil {
			c.logger.Error().Err(err).Str("path", path).Msg("ライブストリームの保存に失敗")
		}
	}()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
