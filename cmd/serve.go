package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kardianos/service"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"circlebridge/internal/config"
)

var (
	serveHost     string
	servePort     int
	serviceAction string
)

// program はkardianos/serviceから起動されるサービス本体
type program struct {
	cfg    *config.Config
	logger zerolog.Logger

	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(service.Service) error {
	// Startはブロックしてはいけないので本体は別ゴルーチンで動かす
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)

	go func() {
		err := serve(ctx, p.cfg, p.logger)
		if err != nil {
			p.logger.Error().Err(err).Msg("サービスが異常終了しました")
			// サービスマネージャーに再起動させる
			os.Exit(1)
		}
		p.done <- nil
	}()
	return nil
}

func (p *program) Stop(service.Service) error {
	p.logger.Info().Msg("サービスを停止しています...")
	if p.cancel == nil {
		return nil
	}
	p.cancel()

	timeout := p.cfg.Server.ShutdownTimeout + 5*time.Second
	select {
	case err := <-p.done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("サービスの停止がタイムアウトしました (%s)", timeout)
	}
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return a.run(ctx)
}

// serviceArguments はサービスとして起動するときのserveの引数を組み立てる
func serviceArguments() []string {
	args := []string{"serve"}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if serveHost != "" {
		args = append(args, "--host", serveHost)
	}
	if servePort != 0 {
		args = append(args, "--port", strconv.Itoa(servePort))
	}
	return args
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "HTTPサーバーを起動する",
	Long: `カメラ一覧を取得してHTTPサーバーを起動します。
--service でシステムサービスとしてのインストールや起動・停止も行えます。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// コマンドラインオプションで設定を上書き
		if serveHost != "" {
			cfg.Server.Host = serveHost
		}
		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		logger, err := newLogger(cfg, os.Stderr)
		if err != nil {
			return err
		}

		// 対話的な実行ではサービスを介さず直接動かす
		if serviceAction == "" && service.Interactive() {
			logger.Info().Str("addr", cfg.ServerAddress()).Msg("circlebridge を起動します")
			return serve(cmd.Context(), cfg, logger)
		}

		prg := &program{cfg: cfg, logger: logger}
		s, err := service.New(prg, &service.Config{
			Name:        "circlebridge",
			DisplayName: "Logi Circle Bridge",
			Description: "Logi CircleカメラのローカルHTTPブリッジ",
			Arguments:   serviceArguments(),
		})
		if err != nil {
			return fmt.Errorf("サービスの作成に失敗: %w", err)
		}

		if serviceAction != "" {
			if serviceAction == "install" && !cfg.HasSessionCookie() {
				return fmt.Errorf("インストール前にセッションCookieを設定してください")
			}
			if err := service.Control(s, serviceAction); err != nil {
				return fmt.Errorf("サービスの%sに失敗: %w", serviceAction, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "サービス操作 '%s' が完了しました\n", serviceAction)
			return nil
		}

		return s.Run()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "サーバーのポート (デフォルト: 8080)")
	serveCmd.Flags().StringVar(&serviceAction, "service", "", "サービス操作: install, uninstall, start, stop")
}
