package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix は設定を上書きする環境変数の接頭辞
const EnvPrefix = "CIRCLEBRIDGE"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server     ServerConfig `mapstructure:"server" yaml:"server"`
	LogiCircle LogiConfig   `mapstructure:"logi_circle" yaml:"logi_circle"`
	Camera     CameraConfig `mapstructure:"camera" yaml:"camera"`
	FFmpeg     FFmpegConfig `mapstructure:"ffmpeg" yaml:"ffmpeg"`
	Log        LogConfig    `mapstructure:"log" yaml:"log"`

	// 書き込みを許可するディレクトリ
	AllowlistExternalDirs []string `mapstructure:"allowlist_external_dirs" yaml:"allowlist_external_dirs" validate:"dive,required"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`                                   // リッスンするホスト
	Port int    `mapstructure:"port" yaml:"port" validate:"required,min=1,max=65535"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"gte=0"`   // 読み込みタイムアウト
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"gte=0"` // 書き込みタイムアウト
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

// LogiConfig はクラウドAPIの設定
type LogiConfig struct {
	APIURL         string        `mapstructure:"api_url" yaml:"api_url" validate:"required,url"`
	SessionCookie  string        `mapstructure:"session_cookie" yaml:"session_cookie"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" validate:"gt=0"`
	RetryCount     int           `mapstructure:"retry_count" yaml:"retry_count" validate:"gte=0,lte=10"`
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	ScanInterval time.Duration `mapstructure:"scan_interval" yaml:"scan_interval" validate:"gte=1s"`
}

// FFmpegConfig はffmpegの実行設定
type FFmpegConfig struct {
	Binary         string   `mapstructure:"binary" yaml:"binary" validate:"required"`
	ExtraArguments []string `mapstructure:"extra_arguments" yaml:"extra_arguments"`
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json console"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load は設定を読み込む
//
// デフォルト値、設定ファイル（pathが空なら読まない）、環境変数の順に上書きする。
// 環境変数は CIRCLEBRIDGE_SERVER_PORT のようにキーの . を _ に置き換えた名前。
// PORT と LOGI_CIRCLE_SESSION も受け付ける。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT")
	_ = v.BindEnv("logi_circle.session_cookie", EnvPrefix+"_LOGI_CIRCLE_SESSION_COOKIE", "LOGI_CIRCLE_SESSION")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗 (%s): %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定の変換に失敗: %w", err)
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 0) // ストリーミング用にタイムアウト無効化
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("logi_circle.api_url", "https://video.logi.com/api")
	v.SetDefault("logi_circle.session_cookie", "")
	v.SetDefault("logi_circle.request_timeout", 10*time.Second)
	v.SetDefault("logi_circle.retry_count", 2)

	v.SetDefault("camera.scan_interval", 60*time.Second)

	v.SetDefault("ffmpeg.binary", "ffmpeg")
	v.SetDefault("ffmpeg.extra_arguments", []string{})

	v.SetDefault("allowlist_external_dirs", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s (%s=%s)", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("無効な設定値: %s", strings.Join(msgs, ", "))
		}
		return err
	}

	for _, dir := range c.AllowlistExternalDirs {
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("allowlist_external_dirs は絶対パスで指定してください: %s", dir)
		}
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsAllowedPath はpathが許可ディレクトリ配下かどうかを返す
//
// シンボリックリンクは存在する範囲で解決してから比較する。
func (c *Config) IsAllowedPath(path string) bool {
	if path == "" {
		return false
	}

	target := resolve(path)
	for _, dir := range c.AllowlistExternalDirs {
		rel, err := filepath.Rel(resolve(dir), target)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}

	return false
}

// resolve は絶対パスに変換し、存在する最も深い親ディレクトリのリンクを解決する
func resolve(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}

	rest := ""
	current := abs
	for {
		if real, err := filepath.EvalSymlinks(current); err == nil {
			return filepath.Join(real, rest)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return abs
		}
		rest = filepath.Join(filepath.Base(current), rest)
		current = parent
	}
}

// YAML はセッションCookieを伏せた設定をYAMLで返す
func (c *Config) YAML() ([]byte, error) {
	redacted := *c
	if redacted.LogiCircle.SessionCookie != "" {
		redacted.LogiCircle.SessionCookie = "**REDACTED**"
	}

	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return nil, fmt.Errorf("設定のYAML変換に失敗: %w", err)
	}
	return out, nil
}

// HasSessionCookie はセッションCookieが設定されているかを返す
func (c *Config) HasSessionCookie() bool {
	return strings.TrimSpace(c.LogiCircle.SessionCookie) != ""
}

// Exists はpathにファイルが存在するかを返す
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
