package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client はバックエンドサービスへの転送用HTTPクライアント。
// 1つのClientを全バックエンドで共有してコネクションプールを再利用する。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// timeout は転送1回あたりのタイムアウト。
	timeout time.Duration
}

// New は新しい転送用HTTPクライアントを生成する。
// timeoutが0以下の場合はデフォルト（30秒）を使用する。
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// タイムアウトはhttp.ClientではなくForwardのコンテキストで制御する
	return &Client{
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// Forward はリクエストを指定URLへ転送し、レスポンスをそのまま返す。
// ヘッダーは呼び出し側で構築済みのものを透過させる。
// レスポンスボディのCloseは呼び出し側の責任。
func (c *Client) Forward(ctx context.Context, method, url string, header http.Header, body io.Reader) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("転送リクエストの作成に失敗: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("バックエンドへの転送に失敗: %w", err)
	}

	// ボディ読み取り完了までコンテキストを生かすため、Close時にキャンセルする
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelReadCloser はClose時にコンテキストのキャンセルも行うReadCloser。
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

// Close はボディを閉じ、関連するコンテキストをキャンセルする。
func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
