package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"circlebridge/internal/camera"
	"circlebridge/internal/logicircle"
)

var (
	cameraName string
	outputFile string
)

// cameraRow はcameras listの1行
type cameraRow struct {
	EntityID  string `json:"entity_id"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Model     string `json:"model"`
	Connected bool   `json:"connected"`
	Streaming bool   `json:"streaming"`
	IPAddress string `json:"ip_address"`
	Battery   *int   `json:"battery_level,omitempty"`
}

// fetchCameras は設定を読み込み、クラウドからカメラ一覧を取得する
func fetchCameras(cmd *cobra.Command) ([]*logicircle.Camera, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}

	// 一覧の取得ではffmpegを使わない
	client, err := newClient(cfg, nil, logger.Level(zerolog.WarnLevel))
	if err != nil {
		return nil, err
	}
	return client.Cameras(cmd.Context())
}

func cameraRows(devices []*logicircle.Camera) []cameraRow {
	rows := make([]cameraRow, 0, len(devices))
	taken := make(map[string]bool)
	for _, device := range devices {
		state := device.State()
		row := cameraRow{
			EntityID:  camera.EntityID(device.Name()),
			ID:        device.ID(),
			Name:      device.Name(),
			Model:     device.ModelNumber(),
			Connected: state.Connected,
			Streaming: state.StreamingEnabled,
			IPAddress: state.IPAddress,
		}
		// serveと同じ規則で重複に番号を振る
		for i := 2; taken[row.EntityID]; i++ {
			row.EntityID = fmt.Sprintf("%s_%d", camera.EntityID(device.Name()), i)
		}
		taken[row.EntityID] = true

		if device.SupportsFeature(camera.FeatureBatteryLevel) {
			level := state.BatteryLevel
			row.Battery = &level
		}
		rows = append(rows, row)
	}
	return rows
}

func printCameras(w io.Writer, rows []cameraRow, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ENTITY_ID\tNAME\tMODEL\tCONNECTED\tSTREAMING\tBATTERY\tIP")
	fmt.Fprintln(tw, "---------\t----\t-----\t---------\t---------\t-------\t--")
	for _, row := range rows {
		battery := "-"
		if row.Battery != nil {
			battery = fmt.Sprintf("%d%%", *row.Battery)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%s\t%s\n",
			row.EntityID,
			row.Name,
			row.Model,
			row.Connected,
			row.Streaming,
			battery,
			row.IPAddress,
		)
	}
	return tw.Flush()
}

var camerasCmd = &cobra.Command{
	Use:   "cameras",
	Short: "カメラを操作する",
	Long:  `アカウントに登録されたカメラの一覧表示やスナップショットの取得を行います。`,
}

var camerasListCmd = &cobra.Command{
	Use:   "list",
	Short: "カメラの一覧を表示する",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := fetchCameras(cmd)
		if err != nil {
			return err
		}
		return printCameras(cmd.OutOrStdout(), cameraRows(devices), jsonOutput)
	},
}

var camerasSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "クラウドに保存された最新のスナップショットを保存する",
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := fetchCameras(cmd)
		if err != nil {
			return err
		}

		for _, device := range devices {
			if device.Name() != cameraName && camera.EntityID(device.Name()) != cameraName {
				continue
			}

			image, err := device.Snapshot(cmd.Context())
			if err != nil {
				return fmt.Errorf("スナップショットの取得に失敗: %w", err)
			}
			if err := os.WriteFile(outputFile, image, 0o644); err != nil {
				return fmt.Errorf("ファイルの書き込みに失敗: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s を保存しました (%d bytes)\n", outputFile, len(image))
			return nil
		}

		return fmt.Errorf("カメラが見つかりません: %s", cameraName)
	},
}

func init() {
	rootCmd.AddCommand(camerasCmd)
	camerasCmd.AddCommand(camerasListCmd)
	camerasCmd.AddCommand(camerasSnapshotCmd)

	camerasSnapshotCmd.Flags().StringVar(&cameraName, "camera", "", "カメラ名またはエンティティID")
	camerasSnapshotCmd.Flags().StringVarP(&outputFile, "output", "o", "snapshot.jpg", "保存先のファイル")
	_ = camerasSnapshotCmd.MarkFlagRequired("camera")
}
