// Package metrics はカメラの状態をPrometheus形式で公開する
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"circlebridge/internal/camera"
)

const namespace = "logi_circle"

// CameraSource はカメラ状態の取得元
type CameraSource interface {
	GetCameras() []camera.CameraInfo
}

var (
	cameraLabels = []string{"entity_id", "name"}

	camerasTotalDesc = prometheus.NewDesc(
		namespace+"_cameras_total", "登録済みカメラ数", nil, nil,
	)
	cameraUpDesc = prometheus.NewDesc(
		namespace+"_camera_up", "直近の状態更新に成功したか", cameraLabels, nil,
	)
	batteryLevelDesc = prometheus.NewDesc(
		namespace+"_camera_battery_level_percent", "バッテリー残量", cameraLabels, nil,
	)
	batteryChargingDesc = prometheus.NewDesc(
		namespace+"_camera_battery_charging", "充電中か", cameraLabels, nil,
	)
	batterySavingDesc = prometheus.NewDesc(
		namespace+"_camera_battery_saving", "省電力モードが有効か", cameraLabels, nil,
	)
	microphoneGainDesc = prometheus.NewDesc(
		namespace+"_camera_microphone_gain", "マイクのゲイン", cameraLabels, nil,
	)
	lastUpdateDesc = prometheus.NewDesc(
		namespace+"_camera_last_update_timestamp_seconds", "最後に状態更新に成功した時刻", cameraLabels, nil,
	)
)

// Collector はスクレイプのたびにCameraSourceから状態を読む
type Collector struct {
	source CameraSource
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(source CameraSource) *Collector {
	return &Collector{source: source}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- camerasTotalDesc
	ch <- cameraUpDesc
	ch <- batteryLevelDesc
	ch <- batteryChargingDesc
	ch <- batterySavingDesc
	ch <- microphoneGainDesc
	ch <- lastUpdateDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	cameras := c.source.GetCameras()
	ch <- prometheus.MustNewConstMetric(camerasTotalDesc, prometheus.GaugeValue, float64(len(cameras)))

	for _, info := range cameras {
		labels := []string{info.EntityID, info.Name}
		attrs := info.Attributes

		ch <- prometheus.MustNewConstMetric(cameraUpDesc, prometheus.GaugeValue,
			boolValue(info.Status == camera.StatusAvailable), labels...)
		ch <- prometheus.MustNewConstMetric(batterySavingDesc, prometheus.GaugeValue,
			boolValue(attrs.BatterySavingMode == "on"), labels...)
		ch <- prometheus.MustNewConstMetric(microphoneGainDesc, prometheus.GaugeValue,
			float64(attrs.MicrophoneGain), labels...)

		// バッテリー駆動のカメラのみ
		if attrs.BatteryLevel != nil {
			ch <- prometheus.MustNewConstMetric(batteryLevelDesc, prometheus.GaugeValue,
				float64(*attrs.BatteryLevel), labels...)
		}
		if attrs.BatteryCharging != nil {
			ch <- prometheus.MustNewConstMetric(batteryChargingDesc, prometheus.GaugeValue,
				boolValue(*attrs.BatteryCharging), labels...)
		}

		if !info.UpdatedAt.IsZero() {
			ch <- prometheus.MustNewConstMetric(lastUpdateDesc, prometheus.GaugeValue,
				float64(info.UpdatedAt.Unix()), labels...)
		}
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
