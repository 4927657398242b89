package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"circlebridge/internal/camera"
)

// EntityIDs はリスト、カンマ区切り文字列、all のいずれでも受け付ける
type EntityIDs []string

func (e *EntityIDs) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*e = normalizeEntityIDs(list)
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return errors.New("entity_id は文字列か文字列の配列で指定してください")
	}
	*e = normalizeEntityIDs(strings.Split(single, ","))
	return nil
}

func normalizeEntityIDs(ids []string) EntityIDs {
	out := make(EntityIDs, 0, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

var entityIDPattern = regexp.MustCompile(`^` + camera.Domain + `\.[a-z0-9_]+$`)

// validEntityID は camera.<slug> か all を受け付ける
func validEntityID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	return id == camera.EntityMatchAll || entityIDPattern.MatchString(id)
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("entity_id", validEntityID)
	}
}

type targetRequest struct {
	EntityID EntityIDs `json:"entity_id" binding:"omitempty,dive,entity_id"`
}

type setConfigRequest struct {
	targetRequest
	Mode  string `json:"mode" binding:"required,oneof=BATTERY_SAVING LED PRIVACY_MODE"`
	Value *bool  `json:"value" binding:"required"`
}

type snapshotRequest struct {
	targetRequest
	Filename string `json:"filename" binding:"required"`
}

type recordRequest struct {
	targetRequest
	Filename string `json:"filename" binding:"required"`
	// 秒
	Duration int `json:"duration" binding:"required,gt=0"`
}

// ServiceResponse はサービス呼び出しの結果
type ServiceResponse struct {
	Service   string    `json:"service"`
	EntityIDs []string  `json:"entity_ids"`
	Timestamp time.Time `json:"timestamp"`
}

var errUnknownService = errors.New("未知のサービス")

// parseCommand はサービス名とリクエストボディからコマンドを組み立てる
func parseCommand(c *gin.Context, service string) (camera.Command, error) {
	switch service {
	case camera.ServiceSetConfig:
		var req setConfigRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return camera.Command{}, err
		}
		return camera.Command{
			EntityIDs: req.EntityID,
			Action:    camera.SetConfig{Mode: camera.ConfigMode(req.Mode), Value: *req.Value},
		}, nil

	case camera.ServiceLivestreamSnapshot:
		var req snapshotRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return camera.Command{}, err
		}
		filename, err := camera.ParsePathTemplate(req.Filename)
		if err != nil {
			return camera.Command{}, fmt.Errorf("filename: %w", err)
		}
		return camera.Command{
			EntityIDs: req.EntityID,
			Action:    camera.LivestreamSnapshot{Filename: filename},
		}, nil

	case camera.ServiceLivestreamRecord:
		var req recordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return camera.Command{}, err
		}
		filename, err := camera.ParsePathTemplate(req.Filename)
		if err != nil {
			return camera.Command{}, fmt.Errorf("filename: %w", err)
		}
		return camera.Command{
			EntityIDs: req.EntityID,
			Action: camera.LivestreamRecord{
				Filename: filename,
				Duration: time.Duration(req.Duration) * time.Second,
			},
		}, nil

	case camera.ServiceTurnOn, camera.ServiceTurnOff:
		// ボディがなければ全カメラが対象
		var req targetRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			return camera.Command{}, err
		}
		var action camera.Action = camera.TurnOn{}
		if service == camera.ServiceTurnOff {
			action = camera.TurnOff{}
		}
		return camera.Command{EntityIDs: req.EntityID, Action: action}, nil

	default:
		return camera.Command{}, fmt.Errorf("%w: %s", errUnknownService, service)
	}
}
