package internal

import (
	"testing"

	"github.com/kcmvp/archunit"
)

// TestArchitecture はカメラのコアが外側のパッケージに依存しないことを確認する
func TestArchitecture(t *testing.T) {
	core := archunit.Packages("camera", []string{".../internal/camera/..."})
	vendor := archunit.Packages("logicircle", []string{".../internal/logicircle/..."})
	media := archunit.Packages("ffmpeg", []string{".../internal/ffmpeg/..."})
	transport := archunit.Packages("server", []string{".../internal/server/..."})
	observability := archunit.Packages("metrics", []string{".../internal/metrics/..."})
	settings := archunit.Packages("config", []string{".../internal/config/..."})

	// cameraは外側のパッケージを知らない
	if err := core.ShouldNotReferLayers(vendor); err != nil {
		t.Errorf("アーキテクチャ違反: cameraがlogicircleに依存しています: %v", err)
	}
	if err := core.ShouldNotReferLayers(media); err != nil {
		t.Errorf("アーキテクチャ違反: cameraがffmpegに依存しています: %v", err)
	}
	if err := core.ShouldNotReferLayers(transport); err != nil {
		t.Errorf("アーキテクチャ違反: cameraがserverに依存しています: %v", err)
	}
	if err := core.ShouldNotReferLayers(observability); err != nil {
		t.Errorf("アーキテクチャ違反: cameraがmetricsに依存しています: %v", err)
	}
	if err := core.ShouldNotReferLayers(settings); err != nil {
		t.Errorf("アーキテクチャ違反: cameraがconfigに依存しています: %v", err)
	}

	// ベンダーAPIはHTTPの公開面を知らない
	if err := vendor.ShouldNotReferLayers(transport); err != nil {
		t.Errorf("アーキテクチャ違反: logicircleがserverに依存しています: %v", err)
	}

	if err := media.ShouldNotReferLayers(core); err != nil {
		t.Errorf("アーキテクチャ違反: ffmpegがcameraに依存しています: %v", err)
	}
}

func TestPackagesPresent(t *testing.T) {
	for _, name := range []string{"camera", "logicircle", "ffmpeg", "server", "metrics", "config", "logging"} {
		layer := archunit.Packages(name, []string{".../internal/" + name})
		if len(layer.Packages()) == 0 {
			t.Errorf("%s パッケージが見つかりません", name)
		}
	}
}
