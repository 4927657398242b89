package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"syscall"
)

// streamChunkSize は1回の読み取りで中継する最大バイト数
const streamChunkSize = 102400

// IsBrokenPipe はパイプが既に閉じていることを示すエラーか判定する
func IsBrokenPipe(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed)
}

// ProxyStream は src の出力を w へそのまま中継する
//
// クライアントの切断（ctxの終了）とソースの終端は正常終了として扱う。
// 破損パイプ以外のI/Oエラーは呼び出し元へ返す。
func ProxyStream(ctx context.Context, w http.ResponseWriter, src io.Reader, contentType string) error {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	buf := make([]byte, streamChunkSize)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				if ctx.Err() != nil || IsBrokenPipe(err) {
					return nil
				}
				return fmt.Errorf("ストリームの書き込みに失敗: %w", err)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) || ctx.Err() != nil || IsBrokenPipe(readErr) {
				return nil
			}
			return fmt.Errorf("ストリームの読み取りに失敗: %w", readErr)
		}
	}
}
