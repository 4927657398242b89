package server

import (
	"encoding/json"
	"net/http"

	"github.com/r3labs/sse/v2"
	"github.com/rs/zerolog"

	"circlebridge/internal/camera"
)

const (
	// cameraStream はカメラ状態を配信するSSEストリーム名
	cameraStream = "cameras"

	eventStateChanged = "state_changed"
)

// Events はカメラ状態の変化をSSEで配信する
type Events struct {
	server *sse.Server
	logger zerolog.Logger
}

// NewEvents は新しいEventsを作成する
func NewEvents(logger zerolog.Logger) *Events {
	s := sse.New()
	s.AutoReplay = false
	s.AutoStream = false
	s.CreateStream(cameraStream)

	return &Events{server: s, logger: logger}
}

// PublishCamera はカメラの状態を配信する
func (e *Events) PublishCamera(info camera.CameraInfo) {
	data, err := json.Marshal(info)
	if err != nil {
		e.logger.Warn().Err(err).Str("entity_id", info.EntityID).Msg("イベントの変換に失敗")
		return
	}

	e.server.Publish(cameraStream, &sse.Event{
		Event: []byte(eventStateChanged),
		Data:  data,
	})
}

// ServeHTTP はクライアントをカメラのストリームに接続する
func (e *Events) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	q.Set("stream", cameraStream)

	r2 := r.Clone(r.Context())
	r2.URL.RawQuery = q.Encode()

	e.server.ServeHTTP(w, r2)
}

// Close は接続中のクライアントをすべて切断する
func (e *Events) Close() {
	e.server.Close()
}
