// Package logging はzerologのロガーを設定から組み立てる
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"circlebridge/internal/config"
)

// New はcfgに従ってwへ出力するロガーを作成する
func New(cfg config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("無効なログレベル %q: %w", cfg.Level, err)
	}
	if cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	out := w
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}
