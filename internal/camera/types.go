package camera

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Attribution はエンティティ属性に付与する提供元表記
const Attribution = "Data provided by circle.logi.com"

// FeatureBatteryLevel はバッテリー駆動カメラが報告する機能名
const FeatureBatteryLevel = "battery_level"

// Status はカメラエンティティの可用性を表す
type Status string

const (
	StatusAvailable   Status = "available"   // 直近の更新に成功
	StatusUnavailable Status = "unavailable" // 直近の更新に失敗
)

// Feature はホストに公開するサポート機能のビットフラグ
type Feature int

const (
	// SupportOnOff はストリーミングのソフトなオン/オフに対応することを示す
	SupportOnOff Feature = 1 << iota
)

// ConfigMode はset_configで変更できる設定項目
type ConfigMode string

const (
	ModeBatterySaving ConfigMode = "BATTERY_SAVING"
	ModePrivacy       ConfigMode = "PRIVACY_MODE"
	ModeLED           ConfigMode = "LED"
)

// Activity はカメラの録画アクティビティ
type Activity struct {
	ID          string
	DownloadURL string
	StartTime   time.Time
}

// DeviceState はデバイスハンドルが保持する最新のカメラ状態
type DeviceState struct {
	Connected        bool
	StreamingEnabled bool
	BatterySaving    bool
	IPAddress        string
	MicrophoneGain   int
	IsCharging       bool
	BatteryLevel     int
}

// DeviceHandle はベンダーSDK側のカメラ1台を表す
//
// 認証済みセッションを内包し、状態のキャッシュと直列化はハンドル側の責務とする。
type DeviceHandle interface {
	// ID はハードウェア識別子（MACアドレス）を返す
	ID() string
	Name() string
	SupportsFeature(feature string) bool

	// State は最後にUpdateで取得した状態を返す
	State() DeviceState

	Snapshot(ctx context.Context) ([]byte, error)
	LastActivity(ctx context.Context) (*Activity, error)

	// SessionCookie はX-Logi-Authヘッダーに載せるセッション値を返す
	SessionCookie() string

	SetStreamingMode(ctx context.Context, enabled bool) error
	SetLED(ctx context.Context, enabled bool) error
	SetPrivacyMode(ctx context.Context, enabled bool) error
	SetBatterySavingMode(ctx context.Context, enabled bool) error

	LivestreamImage(ctx context.Context, path string) error
	RecordLivestream(ctx context.Context, path string, duration time.Duration) error

	Update(ctx context.Context) error
}

// Transcoder は外部メディアプロセスを起動してMJPEGを出力させる
type Transcoder interface {
	// OpenMJPEG は input をヘッダー付きで開き、MJPEG出力を返す
	OpenMJPEG(ctx context.Context, input, header string) (io.ReadCloser, error)

	// ContentType はOpenMJPEGの出力のContent-Typeを返す
	ContentType() string
}

// PathPolicy はホストが管理する書き込み許可パスの判定
type PathPolicy interface {
	IsAllowedPath(path string) bool
}

// Attributes はエンティティの読み取り専用属性
type Attributes struct {
	Attribution       string `json:"attribution"`
	BatterySavingMode string `json:"battery_saving_mode"`
	IPAddress         string `json:"ip_address"`
	MicrophoneGain    int    `json:"microphone_gain"`
	BatteryCharging   *bool  `json:"battery_charging,omitempty"`
	BatteryLevel      *int   `json:"battery_level,omitempty"`
}

// CameraInfo はAPI・イベント・メトリクスで共有するカメラのスナップショット
type CameraInfo struct {
	EntityID          string     `json:"entity_id"`
	UniqueID          string     `json:"unique_id"`
	Name              string     `json:"name"`
	Status            Status     `json:"status"`
	SupportedFeatures Feature    `json:"supported_features"`
	Attributes        Attributes `json:"attributes"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Camera はホストに登録されるカメラエンティティの機能セット
type Camera interface {
	UniqueID() string
	EntityID() string
	Name() string
	SupportedFeatures() Feature
	Status() Status
	Attributes() Attributes

	// Image は静止画を1枚取得する
	Image(ctx context.Context) ([]byte, error)

	// HandleMJPEGStream はライブMJPEGをwへ中継する。ctxはHTTPリクエストに紐づく
	HandleMJPEGStream(ctx context.Context, w http.ResponseWriter) error

	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	SetConfig(ctx context.Context, mode ConfigMode, value bool) error

	// LivestreamSnapshot と LivestreamRecord は書き込みを起動するだけで完了を待たない
	LivestreamSnapshot(ctx context.Context, filename *PathTemplate)
	LivestreamRecord(ctx context.Context, filename *PathTemplate, duration time.Duration)

	// Update はデバイスの最新状態を取り込む
	Update(ctx context.Context) error

	// Wait は起動済みの書き込みがすべて終わるまで待つ
	Wait()
}

// Manager はカメラエンティティの登録とコマンド配送を担う
type Manager interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	GetCameras() []CameraInfo
	GetCamera(entityID string) (Camera, bool)

	// Dispatch はコマンドを対象カメラへ配送する
	Dispatch(ctx context.Context, cmd Command) error
}
