package cmd

import (
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "設定を確認する",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "読み込んだ設定をYAMLで表示する",
	Long:  `デフォルト値・設定ファイル・環境変数を反映した最終的な設定を表示します。セッションCookieは伏せ字になります。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}
