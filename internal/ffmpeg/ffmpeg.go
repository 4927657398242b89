// Package ffmpeg はffmpegプロセスを使った変換処理を提供する
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBinary はPATHから探すffmpegの実行ファイル名
	DefaultBinary = "ffmpeg"

	// boundaryTag はmpjpeg出力の区切り文字列
	boundaryTag = "ffserver"

	// recordSlack は録画時間に加えて待つ猶予
	recordSlack = 30 * time.Second
)

var ErrProcessFailed = errors.New("ffmpegの実行に失敗")

// FFmpeg はffmpegの実行設定を保持する
type FFmpeg struct {
	binary      string
	extraArgs   []string
	stopTimeout time.Duration
	logger      zerolog.Logger
}

// New は新しいFFmpegを作成する。binaryが空ならPATH上のffmpegを使う
func New(binary string, extraArgs []string, logger zerolog.Logger) *FFmpeg {
	if binary == "" {
		binary = DefaultBinary
	}
	return &FFmpeg{
		binary:      binary,
		extraArgs:   extraArgs,
		stopTimeout: 5 * time.Second,
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
	}
}

// ContentType はOpenMJPEGの出力に付けるContent-Type
func (f *FFmpeg) ContentType() string {
	return "multipart/x-mixed-replace;boundary=" + boundaryTag
}

// Probe はffmpegが実行できるか確認する
func (f *FFmpeg) Probe(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, f.binary, "-version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("%w: %s -version: %w", ErrProcessFailed, f.binary, err)
	}

	firstLine, _, _ := strings.Cut(string(output), "\n")
	f.logger.Debug().Str("version", firstLine).Msg("ffmpegを検出しました")
	return nil
}

// OpenMJPEG はinputをmpjpegに変換するプロセスを起動し、その出力を返す
//
// プロセスはctxの終了で強制終了される。Closeは q を送って終了を待つ。
func (f *FFmpeg) OpenMJPEG(ctx context.Context, input, header string) (io.ReadCloser, error) {
	args := inputArgs(input, header)
	args = append(args, "-an", "-f", "mpjpeg", "-boundary_tag", boundaryTag)
	args = append(args, f.extraArgs...)
	args = append(args, "-")

	cmd := exec.CommandContext(ctx, f.binary, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdinパイプの作成に失敗: %w", err)
	}

	// Waitが読み取り側を閉じないよう自前のパイプを使う
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdoutパイプの作成に失敗: %w", err)
	}
	cmd.Stdout = stdoutW

	stream := &Stream{
		cmd:         cmd,
		stdin:       stdin,
		stdout:      stdoutR,
		stopTimeout: f.stopTimeout,
		logger:      f.logger,
	}
	cmd.Stderr = &stream.stderr

	if err := cmd.Start(); err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return nil, fmt.Errorf("%w: 起動できません: %w", ErrProcessFailed, err)
	}
	_ = stdoutW.Close()

	f.logger.Debug().Int("pid", cmd.Process.Pid).Msg("MJPEG変換を開始しました")
	return stream, nil
}

// Snapshot はinputの1フレームをJPEGとしてpathに保存する
func (f *FFmpeg) Snapshot(ctx context.Context, input, header, path string) error {
	args := inputArgs(input, header)
	args = append(args, "-frames:v", "1", "-q:v", "2", "-f", "image2")

	return f.writeFile(ctx, args, path)
}

// Record はinputをduration分だけMP4としてpathに保存する
func (f *FFmpeg) Record(ctx context.Context, input, header, path string, duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("録画時間は正の値である必要があります: %s", duration)
	}

	ctx, cancel := context.WithTimeout(ctx, duration+recordSlack)
	defer cancel()

	args := inputArgs(input, header)
	args = append(args,
		"-t", strconv.FormatFloat(duration.Seconds(), 'f', -1, 64),
		"-c", "copy",
		"-movflags", "+faststart",
		"-f", "mp4",
	)

	return f.writeFile(ctx, args, path)
}

// writeFile は一時ファイルに出力してから path に置き換える
func (f *FFmpeg) writeFile(ctx context.Context, args []string, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}

	tempPath := path + ".part"
	args = append([]string{"-nostdin"}, args...)
	args = append(args, "-y", tempPath)

	start := time.Now()
	cmd := exec.CommandContext(ctx, f.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.Remove(tempPath) // cleanup中のエラーは無視
		return fmt.Errorf("%w: %w (output: %s)", ErrProcessFailed, err, strings.TrimSpace(string(output)))
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("出力ファイルの配置に失敗: %w", err)
	}

	f.logger.Info().
		Str("path", path).
		Dur("elapsed", time.Since(start)).
		Msg("ファイルを保存しました")
	return nil
}

func inputArgs(input, header string) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if header != "" {
		args = append(args, "-headers", header+"\r\n")
	}
	return append(args, "-i", input)
}

// Stream は実行中のffmpegプロセスの標準出力
type Stream struct {
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	stdout      *os.File
	stderr      bytes.Buffer
	stopTimeout time.Duration
	logger      zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

func (s *Stream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Close はプロセスに終了を要求し、終了を待つ
//
// プロセスが既に終了している場合は破損パイプのエラーを返す。
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.stop()
	})
	return s.closeErr
}

func (s *Stream) stop() error {
	_, writeErr := io.WriteString(s.stdin, "q")
	_ = s.stdin.Close()

	// 終了処理中に出力が詰まらないよう読み捨てる
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		_, _ = io.Copy(io.Discard, s.stdout)
	}()

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- s.cmd.Wait()
	}()

	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-time.After(s.stopTimeout):
		s.logger.Warn().Int("pid", s.cmd.Process.Pid).Msg("ffmpegが終了しないため強制終了します")
		_ = s.cmd.Process.Kill()
		waitErr = <-waitCh
	}

	_ = s.stdout.Close()
	<-drained

	if waitErr != nil {
		s.logger.Debug().
			Err(waitErr).
			Str("stderr", strings.TrimSpace(s.stderr.String())).
			Msg("ffmpegが終了しました")
	}

	if writeErr != nil {
		return fmt.Errorf("ffmpegへの終了要求に失敗: %w", writeErr)
	}
	return nil
}
