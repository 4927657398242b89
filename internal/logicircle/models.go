package logicircle

import "time"

// accessory は /accessories が返すカメラ1台分の情報
type accessory struct {
	AccessoryID   string        `json:"accessoryId"`
	Name          string        `json:"name"`
	MAC           string        `json:"mac"`
	ModelNumber   string        `json:"modelNumber"`
	IsConnected   bool          `json:"isConnected"`
	Configuration configuration `json:"configuration"`
}

type configuration struct {
	StreamingEnabled bool   `json:"streamingEnabled"`
	LEDEnabled       bool   `json:"ledEnabled"`
	PrivacyMode      bool   `json:"privacyMode"`
	BatterySaving    bool   `json:"batterySaving"`
	IPAddress        string `json:"ipAddress"`
	MicrophoneGain   int    `json:"microphoneGain"`

	// 有線モデルでは返らない
	BatteryLevel    *int `json:"batteryLevel,omitempty"`
	BatteryCharging bool `json:"batteryCharging"`
}

// 設定変更で送るキー
const (
	configStreaming     = "streamingEnabled"
	configLED           = "ledEnabled"
	configPrivacy       = "privacyMode"
	configBatterySaving = "batterySaving"
)

type activity struct {
	ActivityID       string    `json:"activityId"`
	StartTime        time.Time `json:"startTime"`
	PlaybackDuration int       `json:"playbackDuration"`
}

type activitiesRequest struct {
	Limit              int  `json:"limit"`
	ScanDirectionNewer bool `json:"scanDirectionNewer"`
}

type activitiesResponse struct {
	Activities []activity `json:"activities"`
}
