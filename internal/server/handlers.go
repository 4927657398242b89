package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"circlebridge/internal/camera"
	"circlebridge/internal/config"
	"circlebridge/internal/metrics"
)

// Handler はHTTPエンドポイントの実装
type Handler struct {
	config  *config.Config
	manager camera.Manager
	metrics *metrics.Registry
	events  *Events
	// streams はサーバーのシャットダウンで終了する
	streams context.Context
	logger  zerolog.Logger
}

// ErrorResponse はエラー時のレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status    string     `json:"status"`
	Server    ServerInfo `json:"server"`
	Cameras   int        `json:"cameras"`
	Timestamp time.Time  `json:"timestamp"`
}

type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// CamerasResponse はカメラ一覧のレスポンス
type CamerasResponse struct {
	Cameras []camera.CameraInfo `json:"cameras"`
}

// Register はルートを登録する
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	api.GET("/status", h.GetStatus)
	api.GET("/cameras", h.GetCameras)
	api.GET("/cameras/:entity_id", h.GetCamera)
	api.GET("/camera_proxy/:entity_id", h.GetCameraImage)
	api.GET("/camera_proxy_stream/:entity_id", h.GetCameraStream)
	api.POST("/services/"+camera.Domain+"/:service", h.CallService)

	if h.events != nil {
		api.GET("/events", gin.WrapH(h.events))
	}
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: h.config.Server.Host,
			Port: h.config.Server.Port,
		},
		Cameras:   len(h.manager.GetCameras()),
		Timestamp: time.Now(),
	})
}

// GetCameras はカメラ一覧取得エンドポイントの実装
func (h *Handler) GetCameras(c *gin.Context) {
	c.JSON(http.StatusOK, CamerasResponse{Cameras: h.manager.GetCameras()})
}

// GetCamera はカメラ1台の状態を返す
func (h *Handler) GetCamera(c *gin.Context) {
	cam, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, camera.Info(cam))
}

// GetCameraImage は静止画を返す
func (h *Handler) GetCameraImage(c *gin.Context) {
	cam, ok := h.lookup(c)
	if !ok {
		return
	}

	img, err := cam.Image(c.Request.Context())
	if err != nil {
		h.logger.Warn().Err(err).Str("entity_id", cam.EntityID()).Msg("静止画の取得に失敗")
		abortWithError(c, http.StatusServiceUnavailable, "image_unavailable", "静止画を取得できません")
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/jpeg", img)
}

// GetCameraStream はMJPEGストリーミングエンドポイントの実装
func (h *Handler) GetCameraStream(c *gin.Context) {
	cam, ok := h.lookup(c)
	if !ok {
		return
	}

	// カメラが利用可能か確認
	if cam.Status() != camera.StatusAvailable {
		abortWithError(c, http.StatusServiceUnavailable, "camera_unavailable", "カメラが利用できません")
		return
	}

	done := func(error) {}
	if h.metrics != nil {
		done = h.metrics.StreamStarted()
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	if h.streams != nil {
		stop := context.AfterFunc(h.streams, cancel)
		defer stop()
	}

	err := cam.HandleMJPEGStream(ctx, c.Writer)
	done(err)
	if err == nil {
		return
	}

	h.logger.Error().Err(err).Str("entity_id", cam.EntityID()).Msg("ストリームの中継に失敗")
	if !c.Writer.Written() {
		abortWithError(c, http.StatusServiceUnavailable, "stream_unavailable", "ライブストリームを開けません")
	}
}

// CallService はサービスを呼び出す
func (h *Handler) CallService(c *gin.Context) {
	service := c.Param("service")

	cmd, err := parseCommand(c, service)
	if err != nil {
		if errors.Is(err, errUnknownService) {
			abortWithError(c, http.StatusNotFound, "service_not_found", err.Error())
			return
		}
		h.recordService(service, err)
		abortWithError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	err = h.manager.Dispatch(c.Request.Context(), cmd)
	h.recordService(service, err)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	// 変更後の状態を配信する
	if h.events != nil {
		for _, info := range h.manager.GetCameras() {
			if targeted(cmd.EntityIDs, info.EntityID) {
				h.events.PublishCamera(info)
			}
		}
	}

	ids := cmd.EntityIDs
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, ServiceResponse{
		Service:   service,
		EntityIDs: ids,
		Timestamp: time.Now(),
	})
}

func (h *Handler) lookup(c *gin.Context) (camera.Camera, bool) {
	cam, found := h.manager.GetCamera(c.Param("entity_id"))
	if !found {
		abortWithError(c, http.StatusNotFound, "camera_not_found", "指定されたカメラが見つかりません")
		return nil, false
	}
	return cam, true
}

func (h *Handler) recordService(service string, err error) {
	if h.metrics != nil {
		h.metrics.ServiceCalled(service, err)
	}
}

func targeted(ids []string, entityID string) bool {
	if len(ids) == 0 {
		return true
	}
	for _, id := range ids {
		if id == camera.EntityMatchAll || id == entityID {
			return true
		}
	}
	return false
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	})
}
