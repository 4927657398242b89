package ffmpeg

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFFmpeg は引数を記録してscriptを実行するffmpegの代わりを作る
func fakeFFmpeg(t *testing.T, script string) (binary string, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("シェルスクリプトを実行できない環境です")
	}

	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args.txt")
	binary = filepath.Join(dir, "ffmpeg")

	content := "#!/bin/sh\n" +
		"printf '%s\\n' \"$@\" > '" + argsFile + "'\n" +
		"for last; do :; done\n" +
		script + "\n"
	require.NoError(t, os.WriteFile(binary, []byte(content), 0755))

	return binary, argsFile
}

func readArgs(t *testing.T, argsFile string) []string {
	t.Helper()
	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestFFmpeg_ContentType(t *testing.T) {
	f := New("", nil, zerolog.Nop())
	assert.Equal(t, "multipart/x-mixed-replace;boundary=ffserver", f.ContentType())
	assert.Equal(t, DefaultBinary, f.binary)
}

func TestFFmpeg_Probe(t *testing.T) {
	binary, _ := fakeFFmpeg(t, "echo 'ffmpeg version 6.1'")
	require.NoError(t, New(binary, nil, zerolog.Nop()).Probe(context.Background()))

	missing := New(filepath.Join(t.TempDir(), "missing"), nil, zerolog.Nop())
	assert.ErrorIs(t, missing.Probe(context.Background()), ErrProcessFailed)
}

func TestFFmpeg_OpenMJPEG(t *testing.T) {
	// q を受け取るまで待ってから終了する
	binary, argsFile := fakeFFmpeg(t, "printf 'frame-data'\nread -r cmd\nexit 0")
	f := New(binary, []string{"-q:v", "5"}, zerolog.Nop())

	stream, err := f.OpenMJPEG(context.Background(), "https://example.com/clip.mp4", "X-Logi-Auth: secret")
	require.NoError(t, err)

	buf := make([]byte, len("frame-data"))
	_, err = io.ReadFull(stream, buf)
	require.NoError(t, err)
	assert.Equal(t, "frame-data", string(buf))

	require.NoError(t, stream.Close())
	// 2回目以降は同じ結果を返す
	require.NoError(t, stream.Close())

	args := readArgs(t, argsFile)
	assert.Contains(t, args, "X-Logi-Auth: secret\r")
	assert.Contains(t, args, "https://example.com/clip.mp4")
	assert.Contains(t, args, "mpjpeg")
	assert.Contains(t, args, "ffserver")
	assert.Equal(t, []string{"-q:v", "5", "-"}, args[len(args)-3:])
	assert.NotContains(t, args, "-nostdin")
}

func TestFFmpeg_OpenMJPEG_ExitedBeforeClose(t *testing.T) {
	// stdinを閉じてから出力して終了する
	binary, _ := fakeFFmpeg(t, "exec 0<&-\nprintf 'frame'\nexit 0")
	f := New(binary, nil, zerolog.Nop())

	stream, err := f.OpenMJPEG(context.Background(), "input.mp4", "")
	require.NoError(t, err)

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "frame", string(data))

	err = stream.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, syscall.EPIPE)
}

func TestFFmpeg_OpenMJPEG_KillAfterTimeout(t *testing.T) {
	// q を無視して動き続ける
	binary, _ := fakeFFmpeg(t, "trap '' TERM\nwhile :; do sleep 1; done")
	f := New(binary, nil, zerolog.Nop())
	f.stopTimeout = 50 * time.Millisecond

	stream, err := f.OpenMJPEG(context.Background(), "input.mp4", "")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- stream.Close() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close が戻りません")
	}
}

func TestFFmpeg_OpenMJPEG_StartFailure(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "missing"), nil, zerolog.Nop())

	_, err := f.OpenMJPEG(context.Background(), "input.mp4", "")
	assert.ErrorIs(t, err, ErrProcessFailed)
}

func TestFFmpeg_Snapshot(t *testing.T) {
	binary, argsFile := fakeFFmpeg(t, "printf 'jpeg' > \"$last\"")
	f := New(binary, nil, zerolog.Nop())

	path := filepath.Join(t.TempDir(), "nested", "snapshot.jpg")
	require.NoError(t, f.Snapshot(context.Background(), "https://example.com/live.mpd", "X-Logi-Auth: secret", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	_, err = os.Stat(path + ".part")
	assert.True(t, os.IsNotExist(err))

	args := readArgs(t, argsFile)
	assert.Equal(t, "-nostdin", args[0])
	assert.Contains(t, args, "-frames:v")
	assert.Equal(t, path+".part", args[len(args)-1])
}

func TestFFmpeg_Record(t *testing.T) {
	binary, argsFile := fakeFFmpeg(t, "printf 'mp4' > \"$last\"")
	f := New(binary, nil, zerolog.Nop())

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, f.Record(context.Background(), "https://example.com/live.mpd", "", path, 30*time.Second))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mp4", string(data))

	args := readArgs(t, argsFile)
	assert.Contains(t, args, "30")
	assert.Contains(t, args, "mp4")
	assert.NotContains(t, args, "-headers")
}

func TestFFmpeg_RecordFailure(t *testing.T) {
	binary, _ := fakeFFmpeg(t, "echo 'Connection refused' >&2\nprintf 'partial' > \"$last\"\nexit 1")
	f := New(binary, nil, zerolog.Nop())

	path := filepath.Join(t.TempDir(), "clip.mp4")
	err := f.Record(context.Background(), "https://example.com/live.mpd", "", path, time.Second)
	require.ErrorIs(t, err, ErrProcessFailed)
	assert.Contains(t, err.Error(), "Connection refused")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(path + ".part")
	assert.True(t, os.IsNotExist(statErr))

	assert.Error(t, f.Record(context.Background(), "input", "", path, 0))
}
