package camera

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultScanInterval は状態ポーリングのデフォルト間隔
const DefaultScanInterval = 60 * time.Second

// DefaultManager はManagerのデフォルト実装
type DefaultManager struct {
	cameras map[string]Camera
	order   []string
	mu      sync.RWMutex

	logger zerolog.Logger

	// 状態更新の通知先
	onUpdate func(CameraInfo)

	// 制御用
	stopCh chan struct{}
	wg     sync.WaitGroup

	scanInterval time.Duration
}

var _ Manager = (*DefaultManager)(nil)

// NewDefaultManager は新しいDefaultManagerを作成する
func NewDefaultManager(logger zerolog.Logger) *DefaultManager {
	return &DefaultManager{
		cameras:      make(map[string]Camera),
		logger:       logger,
		stopCh:       make(chan struct{}),
		scanInterval: DefaultScanInterval,
	}
}

// Register はカメラを登録する
func (m *DefaultManager) Register(cam Camera) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := cam.EntityID()
	if _, exists := m.cameras[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, id)
	}

	m.cameras[id] = cam
	m.order = append(m.order, id)
	return nil
}

// Start は初回の状態更新を行い、定期ポーリングを開始する
func (m *DefaultManager) Start(ctx context.Context) error {
	m.refreshAll(ctx)

	m.mu.RLock()
	stopCh := m.stopCh
	m.mu.RUnlock()

	m.wg.Add(1)
	go m.backgroundPoll(ctx, stopCh)

	m.logger.Info().
		Int("cameras", len(m.list())).
		Dur("scan_interval", m.interval()).
		Msg("カメラマネージャーを開始しました")
	return nil
}

// Stop はポーリングを止め、起動済みの書き込みの完了を待つ
func (m *DefaultManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, cam := range m.list() {
			cam.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("書き込みの完了待ちを中断: %w", ctx.Err())
	}

	m.logger.Info().Msg("カメラマネージャーを停止しました")
	return nil
}

// GetCameras は登録順にカメラの状態を返す
func (m *DefaultManager) GetCameras() []CameraInfo {
	cams := m.list()
	infos := make([]CameraInfo, 0, len(cams))
	for _, cam := range cams {
		infos = append(infos, Info(cam))
	}
	return infos
}

// GetCamera は指定されたエンティティIDのカメラを取得する
func (m *DefaultManager) GetCamera(entityID string) (Camera, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cam, exists := m.cameras[entityID]
	return cam, exists
}

// Dispatch はコマンドを対象カメラへ順に適用する
//
// 個々のカメラでの失敗はログに残し、残りのカメラへの配送は続ける。
func (m *DefaultManager) Dispatch(ctx context.Context, cmd Command) error {
	if err := validateAction(cmd.Action); err != nil {
		return fmt.Errorf("コマンドを配送できません: %w", err)
	}

	service := cmd.Action.Service()
	for _, cam := range m.selectTargets(cmd.EntityIDs) {
		if err := apply(ctx, cam, cmd.Action); err != nil {
			m.logger.Error().
				Err(err).
				Str("entity_id", cam.EntityID()).
				Str("service", service).
				Msg("コマンドの実行に失敗")
		}
	}

	return nil
}

// SetScanInterval はポーリング間隔を設定する
func (m *DefaultManager) SetScanInterval(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanInterval = interval
}

// SetUpdateHandler は状態更新のたびに呼ばれる関数を設定する
func (m *DefaultManager) SetUpdateHandler(fn func(CameraInfo)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// selectTargets はエンティティIDに一致するカメラを返す。空なら全カメラ
func (m *DefaultManager) selectTargets(entityIDs []string) []Camera {
	all := m.list()
	if len(entityIDs) == 0 {
		return all
	}

	wanted := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		if id == EntityMatchAll {
			return all
		}
		wanted[id] = true
	}

	targets := make([]Camera, 0, len(entityIDs))
	for _, cam := range all {
		if wanted[cam.EntityID()] {
			targets = append(targets, cam)
		}
	}
	return targets
}

// refreshAll は全カメラの状態を並行して更新する
func (m *DefaultManager) refreshAll(ctx context.Context) {
	m.mu.RLock()
	onUpdate := m.onUpdate
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, cam := range m.list() {
		wg.Add(1)
		go func(cam Camera) {
			defer wg.Done()

			if err := cam.Update(ctx); err != nil {
				m.logger.Warn().Err(err).Str("entity_id", cam.EntityID()).Msg("カメラの状態更新に失敗")
			}
			if onUpdate != nil {
				onUpdate(Info(cam))
			}
		}(cam)
	}
	wg.Wait()
}

// backgroundPoll は定期的に状態を更新する
func (m *DefaultManager) backgroundPoll(ctx context.Context, stopCh <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval())
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refreshAll(ctx)
		}
	}
}

func (m *DefaultManager) list() []Camera {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cams := make([]Camera, 0, len(m.order))
	for _, id := range m.order {
		cams = append(cams, m.cameras[id])
	}
	return cams
}

func (m *DefaultManager) interval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scanInterval
}

// PlatformDeps はプラットフォーム初期化で各カメラに渡す依存
type PlatformDeps struct {
	Transcoder Transcoder
	Paths      PathPolicy
	Logger     zerolog.Logger
}

// SetupPlatform はデバイスハンドルごとにLogiCamを作成して登録する
func SetupPlatform(m *DefaultManager, handles []DeviceHandle, deps PlatformDeps) error {
	taken := make(map[string]bool)
	for _, cam := range m.list() {
		taken[cam.EntityID()] = true
	}

	for _, handle := range handles {
		entityID := uniqueEntityID(EntityID(handle.Name()), taken)
		taken[entityID] = true

		cam := NewLogiCam(entityID, handle, deps.Transcoder, deps.Paths, deps.Logger)
		if err := m.Register(cam); err != nil {
			return err
		}
	}

	return nil
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// EntityID は表示名から camera.<slug> 形式のエンティティIDを作る
func EntityID(name string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(name), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "unnamed"
	}
	return Domain + "." + slug
}

func uniqueEntityID(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if !taken[candidate] {
			return candidate
		}
	}
}
