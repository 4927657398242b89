package camera

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

type MockDeviceHandle struct {
	mock.Mock
	id         string
	name       string
	hasBattery bool
	state      DeviceState
}

func newMockHandle(id, name string) *MockDeviceHandle {
	return &MockDeviceHandle{id: id, name: name}
}

func (m *MockDeviceHandle) ID() string   { return m.id }
func (m *MockDeviceHandle) Name() string { return m.name }

func (m *MockDeviceHandle) SupportsFeature(feature string) bool {
	return feature == FeatureBatteryLevel && m.hasBattery
}

func (m *MockDeviceHandle) State() DeviceState { return m.state }

func (m *MockDeviceHandle) Snapshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *MockDeviceHandle) LastActivity(ctx context.Context) (*Activity, error) {
	args := m.Called(ctx)
	a, _ := args.Get(0).(*Activity)
	return a, args.Error(1)
}

func (m *MockDeviceHandle) SessionCookie() string { return "cookie-value" }

func (m *MockDeviceHandle) SetStreamingMode(ctx context.Context, enabled bool) error {
	return m.Called(ctx, enabled).Error(0)
}

func (m *MockDeviceHandle) SetLED(ctx context.Context, enabled bool) error {
	return m.Called(ctx, enabled).Error(0)
}

func (m *MockDeviceHandle) SetPrivacyMode(ctx context.Context, enabled bool) error {
	return m.Called(ctx, enabled).Error(0)
}

func (m *MockDeviceHandle) SetBatterySavingMode(ctx context.Context, enabled bool) error {
	return m.Called(ctx, enabled).Error(0)
}

func (m *MockDeviceHandle) LivestreamImage(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func (m *MockDeviceHandle) RecordLivestream(ctx context.Context, path string, duration time.Duration) error {
	return m.Called(ctx, path, duration).Error(0)
}

func (m *MockDeviceHandle) Update(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockTranscoder struct {
	mock.Mock
}

func (m *MockTranscoder) OpenMJPEG(ctx context.Context, input, header string) (io.ReadCloser, error) {
	args := m.Called(ctx, input, header)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *MockTranscoder) ContentType() string {
	return "multipart/x-mixed-replace;boundary=ffserver"
}

// fakeStream はCloseの回数と戻り値を制御できるストリーム
type fakeStream struct {
	io.Reader
	mu       sync.Mutex
	closes   int
	closeErr error
}

func newFakeStream(data string, closeErr error) *fakeStream {
	return &fakeStream{Reader: strings.NewReader(data), closeErr: closeErr}
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return s.closeErr
}

func (s *fakeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// prefixPolicy は指定ディレクトリ配下のみ許可する
type prefixPolicy struct {
	allowed []string
}

func (p prefixPolicy) IsAllowedPath(path string) bool {
	for _, dir := range p.allowed {
		if strings.HasPrefix(path, dir+"/") {
			return true
		}
	}
	return false
}

// logBuffer はzerologの出力を保持し、レベルごとに数える
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *logBuffer) count(level string) int {
	return strings.Count(b.String(), `"level":"`+level+`"`)
}

func newTestLogger() (zerolog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return zerolog.New(buf).Level(zerolog.DebugLevel), buf
}

func newTestCam(entityID string, handle *MockDeviceHandle, transcoder Transcoder) (*LogiCam, *logBuffer) {
	logger, buf := newTestLogger()
	paths := prefixPolicy{allowed: []string{"/allowed"}}
	return NewLogiCam(entityID, handle, transcoder, paths, logger), buf
}
