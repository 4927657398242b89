// Package logicircle はLogi CircleのクラウドAPIを使ってカメラを操作する
package logicircle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL はクラウドAPIのベースURL
	DefaultBaseURL = "https://video.logi.com/api"

	// SessionCookieName はセッションを保持するCookie名
	SessionCookieName = "prod_session"

	defaultTimeout = 10 * time.Second
	defaultOrigin  = "https://circle.logi.com"
)

var (
	ErrNotLoggedIn         = errors.New("セッションCookieが設定されていません")
	ErrRequestUnauthorized = errors.New("認証に失敗しました (401)")
	ErrRequestFailed       = errors.New("APIリクエストに失敗")
	ErrNoCamerasFound      = errors.New("カメラが見つかりません")
	ErrNoActivity          = errors.New("アクティビティがありません")
	ErrNoRecorder          = errors.New("録画機能が設定されていません")
)

// Recorder はライブストリームをファイルに保存する外部処理
type Recorder interface {
	Snapshot(ctx context.Context, input, header, path string) error
	Record(ctx context.Context, input, header, path string, duration time.Duration) error
}

// Options はClientの設定
type Options struct {
	BaseURL       string
	SessionCookie string
	Timeout       time.Duration
	RetryCount    int
	Recorder      Recorder
}

// Client はクラウドAPIのクライアント
type Client struct {
	http     *resty.Client
	baseURL  string
	cookie   string
	recorder Recorder
	logger   zerolog.Logger
}

// NewClient は新しいClientを作成する
func NewClient(opts Options, logger zerolog.Logger) (*Client, error) {
	if opts.SessionCookie == "" {
		return nil, ErrNotLoggedIn
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	r := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Origin", defaultOrigin).
		SetCookie(&http.Cookie{Name: SessionCookieName, Value: opts.SessionCookie}).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{
		http:     r,
		baseURL:  opts.BaseURL,
		cookie:   opts.SessionCookie,
		recorder: opts.Recorder,
		logger:   logger.With().Str("component", "logicircle").Logger(),
	}, nil
}

// Cameras はアカウントに登録された全カメラを取得する
func (c *Client) Cameras(ctx context.Context) ([]*Camera, error) {
	var accessories []accessory

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&accessories).
		Get("/accessories")
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("カメラ一覧の取得に失敗: %w", err)
	}

	if len(accessories) == 0 {
		return nil, ErrNoCamerasFound
	}

	cameras := make([]*Camera, 0, len(accessories))
	for _, acc := range accessories {
		cameras = append(cameras, newCamera(c, acc))
	}

	c.logger.Info().Int("count", len(cameras)).Msg("カメラ一覧を取得しました")
	return cameras, nil
}

func (c *Client) accessory(ctx context.Context, id string) (accessory, error) {
	var acc accessory

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&acc).
		Get("/accessories/{id}")
	if err := checkResponse(resp, err); err != nil {
		return accessory{}, err
	}
	return acc, nil
}

func (c *Client) image(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetHeader("Accept", "image/jpeg").
		Get("/accessories/{id}/image")
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	if len(resp.Body()) == 0 {
		return nil, fmt.Errorf("%w: 画像が空です", ErrRequestFailed)
	}
	return resp.Body(), nil
}

func (c *Client) updateConfig(ctx context.Context, id, key string, value bool) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(map[string]bool{key: value}).
		Put("/accessories/{id}/config")
	return checkResponse(resp, err)
}

func (c *Client) latestActivity(ctx context.Context, id string) (activity, error) {
	var result activitiesResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(activitiesRequest{Limit: 1, ScanDirectionNewer: false}).
		SetResult(&result).
		Post("/accessories/{id}/activities")
	if err := checkResponse(resp, err); err != nil {
		return activity{}, err
	}

	if len(result.Activities) == 0 {
		return activity{}, ErrNoActivity
	}
	return result.Activities[0], nil
}

func (c *Client) activityURL(accessoryID, activityID string) string {
	return fmt.Sprintf("%s/accessories/%s/activities/%s/mp4", c.baseURL, accessoryID, activityID)
}

func (c *Client) liveStreamURL(accessoryID string) string {
	return fmt.Sprintf("%s/accessories/%s/mpd", c.baseURL, accessoryID)
}

// authHeader はffmpegに渡す認証ヘッダー
func (c *Client) authHeader() string {
	return "X-Logi-Auth: " + c.cookie
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return ErrRequestUnauthorized
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s %s: %d %s",
			ErrRequestFailed, resp.Request.Method, resp.Request.URL, resp.StatusCode(), resp.String())
	}
	return nil
}
