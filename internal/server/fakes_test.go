package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"circlebridge/internal/camera"
)

type fakeCamera struct {
	entityID string
	status   camera.Status
	image    []byte
	stream   string
	// streamErr は中継前に返すエラー
	streamErr error
	// source があればstreamの代わりに中継する
	source io.Reader
}

func (c *fakeCamera) UniqueID() string                  { return "uid-" + c.entityID }
func (c *fakeCamera) EntityID() string                  { return c.entityID }
func (c *fakeCamera) Name() string                      { return c.entityID }
func (c *fakeCamera) SupportedFeatures() camera.Feature { return camera.SupportOnOff }
func (c *fakeCamera) Status() camera.Status             { return c.status }

func (c *fakeCamera) Attributes() camera.Attributes {
	return camera.Attributes{Attribution: camera.Attribution, BatterySavingMode: "off"}
}

func (c *fakeCamera) Image(context.Context) ([]byte, error) {
	if c.image == nil {
		return nil, camera.ErrImageUnavailable
	}
	return c.image, nil
}

func (c *fakeCamera) HandleMJPEGStream(ctx context.Context, w http.ResponseWriter) error {
	if c.streamErr != nil {
		return c.streamErr
	}
	var src io.Reader = strings.NewReader(c.stream)
	if c.source != nil {
		src = c.source
	}
	return camera.ProxyStream(ctx, w, src, "multipart/x-mixed-replace;boundary=ffserver")
}

func (c *fakeCamera) TurnOn(context.Context) error  { return nil }
func (c *fakeCamera) TurnOff(context.Context) error { return nil }

func (c *fakeCamera) SetConfig(context.Context, camera.ConfigMode, bool) error { return nil }

func (c *fakeCamera) LivestreamSnapshot(context.Context, *camera.PathTemplate) {}

func (c *fakeCamera) LivestreamRecord(context.Context, *camera.PathTemplate, time.Duration) {}

func (c *fakeCamera) Update(context.Context) error { return nil }
func (c *fakeCamera) Wait()                        {}

// fakeManager は配送されたコマンドを記録する
type fakeManager struct {
	mu         sync.Mutex
	cameras    []*fakeCamera
	commands   []camera.Command
	dispatchFn func(camera.Command) error
}

func (m *fakeManager) Start(context.Context) error { return nil }
func (m *fakeManager) Stop(context.Context) error  { return nil }

func (m *fakeManager) GetCameras() []camera.CameraInfo {
	infos := make([]camera.CameraInfo, 0, len(m.cameras))
	for _, cam := range m.cameras {
		infos = append(infos, camera.Info(cam))
	}
	return infos
}

func (m *fakeManager) GetCamera(entityID string) (camera.Camera, bool) {
	for _, cam := range m.cameras {
		if cam.entityID == entityID {
			return cam, true
		}
	}
	return nil, false
}

func (m *fakeManager) Dispatch(_ context.Context, cmd camera.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dispatchFn != nil {
		if err := m.dispatchFn(cmd); err != nil {
			return err
		}
	}
	m.commands = append(m.commands, cmd)
	return nil
}

func (m *fakeManager) dispatched() []camera.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]camera.Command(nil), m.commands...)
}

// endlessFrames は終わらないMJPEGのフレームを返す
type endlessFrames struct{}

func (endlessFrames) Read(p []byte) (int, error) {
	time.Sleep(10 * time.Millisecond)
	return copy(p, "--ffserver\r\nframe\r\n"), nil
}

var errStreamFailed = errors.New("ライブストリームを開けません: no activity")
