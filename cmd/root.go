// Package cmd はcirclebridgeのコマンドラインを実装する
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"circlebridge/internal/config"
	"circlebridge/internal/logging"
)

// defaultConfigFile は--config未指定時にカレントディレクトリから探すファイル名
const defaultConfigFile = "circlebridge.yaml"

var (
	cfgFile    string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "circlebridge",
	Short: "Logi Circleカメラをローカルに中継するブリッジ",
	Long: `Logi CircleのクラウドAPIに接続し、カメラの状態・スナップショット・
MJPEGライブストリームをローカルのHTTP APIとして公開します。`,
	SilenceUsage: true,
}

// Execute はルートコマンドを実行する
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "設定ファイル (デフォルト: ./"+defaultConfigFile+" があれば使用)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "結果をJSONで出力する")
}

// loadConfig は--configか既定のファイルから設定を読み込む
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" && config.Exists(defaultConfigFile) {
		path = defaultConfigFile
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config, w io.Writer) (zerolog.Logger, error) {
	logger, err := logging.New(cfg.Log, w)
	if err != nil {
		return zerolog.Nop(), err
	}
	return logger.With().Str("app", "circlebridge").Logger(), nil
}
