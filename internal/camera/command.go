package camera

import (
	"context"
	"errors"
	"time"
)

// Domain はコマンドを登録する名前空間
const Domain = "camera"

// サービス名
const (
	ServiceSetConfig          = "logi_circle_set_config"
	ServiceLivestreamSnapshot = "logi_circle_livestream_snapshot"
	ServiceLivestreamRecord   = "logi_circle_livestream_record"
	ServiceTurnOn             = "turn_on"
	ServiceTurnOff            = "turn_off"
)

// EntityMatchAll は全エンティティを対象にする指定値
const EntityMatchAll = "all"

var (
	ErrUnknownCommand  = errors.New("未知のコマンド")
	ErrDuplicateEntity = errors.New("エンティティIDが重複しています")
)

// Command はターゲット指定付きの1回分のコマンド
type Command struct {
	// EntityIDs が空なら登録済みの全カメラが対象
	EntityIDs []string
	Action    Action
}

// Action はコマンド種別ごとのパラメータ。実装はこのパッケージ内に閉じている
type Action interface {
	Service() string
	action()
}

type SetConfig struct {
	Mode  ConfigMode
	Value bool
}

type LivestreamSnapshot struct {
	Filename *PathTemplate
}

type LivestreamRecord struct {
	Filename *PathTemplate
	Duration time.Duration
}

type TurnOn struct{}

type TurnOff struct{}

func (SetConfig) Service() string          { return ServiceSetConfig }
func (LivestreamSnapshot) Service() string { return ServiceLivestreamSnapshot }
func (LivestreamRecord) Service() string   { return ServiceLivestreamRecord }
func (TurnOn) Service() string             { return ServiceTurnOn }
func (TurnOff) Service() string            { return ServiceTurnOff }

func (SetConfig) action()          {}
func (LivestreamSnapshot) action() {}
func (LivestreamRecord) action()   {}
func (TurnOn) action()             {}
func (TurnOff) action()            {}

// validateAction は配送前にパラメータを検証する
func validateAction(a Action) error {
	switch a := a.(type) {
	case SetConfig, TurnOn, TurnOff:
		return nil
	case LivestreamSnapshot:
		if a.Filename == nil {
			return errors.New("filename が指定されていません")
		}
		return nil
	case LivestreamRecord:
		if a.Filename == nil {
			return errors.New("filename が指定されていません")
		}
		if a.Duration <= 0 {
			return errors.New("duration は正の値である必要があります")
		}
		return nil
	default:
		return ErrUnknownCommand
	}
}

// apply はアクションを1台のカメラに適用する
func apply(ctx context.Context, cam Camera, a Action) error {
	switch a := a.(type) {
	case SetConfig:
		return cam.SetConfig(ctx, a.Mode, a.Value)
	case LivestreamSnapshot:
		cam.LivestreamSnapshot(ctx, a.Filename)
		return nil
	case LivestreamRecord:
		cam.LivestreamRecord(ctx, a.Filename, a.Duration)
		return nil
	case TurnOn:
		return cam.TurnOn(ctx)
	case TurnOff:
		return cam.TurnOff(ctx)
	default:
		return ErrUnknownCommand
	}
}
