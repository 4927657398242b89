package logicircle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"circlebridge/internal/camera"
)

// Camera はクラウドAPI上のカメラ1台。camera.DeviceHandleを実装する
type Camera struct {
	client *Client

	mu  sync.RWMutex
	acc accessory
}

var _ camera.DeviceHandle = (*Camera)(nil)

func newCamera(client *Client, acc accessory) *Camera {
	return &Camera{client: client, acc: acc}
}

// ID はMACアドレスを返す。未設定ならアクセサリーID
func (c *Camera) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.acc.MAC != "" {
		return c.acc.MAC
	}
	return c.acc.AccessoryID
}

func (c *Camera) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.acc.Name
}

func (c *Camera) ModelNumber() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.acc.ModelNumber
}

// SupportsFeature はバッテリー残量を報告するモデルかどうかを返す
func (c *Camera) SupportsFeature(feature string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch feature {
	case camera.FeatureBatteryLevel:
		level := c.acc.Configuration.BatteryLevel
		return level != nil && *level >= 0
	default:
		return false
	}
}

func (c *Camera) State() camera.DeviceState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cfg := c.acc.Configuration
	state := camera.DeviceState{
		Connected:        c.acc.IsConnected,
		StreamingEnabled: cfg.StreamingEnabled,
		BatterySaving:    cfg.BatterySaving,
		IPAddress:        cfg.IPAddress,
		MicrophoneGain:   cfg.MicrophoneGain,
		IsCharging:       cfg.BatteryCharging,
	}
	if cfg.BatteryLevel != nil {
		state.BatteryLevel = *cfg.BatteryLevel
	}
	return state
}

func (c *Camera) Snapshot(ctx context.Context) ([]byte, error) {
	return c.client.image(ctx, c.accessoryID())
}

// LastActivity は最新の録画アクティビティを取得する
func (c *Camera) LastActivity(ctx context.Context) (*camera.Activity, error) {
	id := c.accessoryID()

	act, err := c.client.latestActivity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s の最新アクティビティを取得できません: %w", c.Name(), err)
	}

	return &camera.Activity{
		ID:          act.ActivityID,
		DownloadURL: c.client.activityURL(id, act.ActivityID),
		StartTime:   act.StartTime,
	}, nil
}

func (c *Camera) SessionCookie() string {
	return c.client.cookie
}

func (c *Camera) SetStreamingMode(ctx context.Context, enabled bool) error {
	return c.setConfig(ctx, configStreaming, enabled, func(cfg *configuration) { cfg.StreamingEnabled = enabled })
}

func (c *Camera) SetLED(ctx context.Context, enabled bool) error {
	return c.setConfig(ctx, configLED, enabled, func(cfg *configuration) { cfg.LEDEnabled = enabled })
}

func (c *Camera) SetPrivacyMode(ctx context.Context, enabled bool) error {
	return c.setConfig(ctx, configPrivacy, enabled, func(cfg *configuration) { cfg.PrivacyMode = enabled })
}

func (c *Camera) SetBatterySavingMode(ctx context.Context, enabled bool) error {
	return c.setConfig(ctx, configBatterySaving, enabled, func(cfg *configuration) { cfg.BatterySaving = enabled })
}

// LivestreamImage はライブストリームの1フレームをpathに保存する
func (c *Camera) LivestreamImage(ctx context.Context, path string) error {
	if c.client.recorder == nil {
		return ErrNoRecorder
	}
	return c.client.recorder.Snapshot(ctx, c.client.liveStreamURL(c.accessoryID()), c.client.authHeader(), path)
}

// RecordLivestream はライブストリームをduration分だけpathに録画する
func (c *Camera) RecordLivestream(ctx context.Context, path string, duration time.Duration) error {
	if c.client.recorder == nil {
		return ErrNoRecorder
	}
	return c.client.recorder.Record(ctx, c.client.liveStreamURL(c.accessoryID()), c.client.authHeader(), path, duration)
}

// Update は最新の状態をAPIから取り込む
func (c *Camera) Update(ctx context.Context) error {
	acc, err := c.client.accessory(ctx, c.accessoryID())
	if err != nil {
		return fmt.Errorf("%s の状態を取得できません: %w", c.Name(), err)
	}

	c.mu.Lock()
	c.acc = acc
	c.mu.Unlock()
	return nil
}

func (c *Camera) setConfig(ctx context.Context, key string, value bool, apply func(*configuration)) error {
	if err := c.client.updateConfig(ctx, c.accessoryID(), key, value); err != nil {
		return fmt.Errorf("%s の %s を変更できません: %w", c.Name(), key, err)
	}

	c.mu.Lock()
	apply(&c.acc.Configuration)
	c.mu.Unlock()

	c.client.logger.Debug().
		Str("accessory", c.accessoryID()).
		Str("key", key).
		Bool("value", value).
		Msg("設定を変更しました")
	return nil
}

func (c *Camera) accessoryID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.acc.AccessoryID
}
