package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Pusher 带签名与重试的 Webhook 推送器
type Pusher struct {
	Client  *http.Client
	Secret  string
	Retries int
	Backoff []time.Duration
}

// NewPusher 创建推送器，client 为 nil 时使用默认超时客户端
func NewPusher(client *http.Client, secret string) *Pusher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Pusher{
		Client:  client,
		Secret:  secret,
		Retries: 5,
		Backoff: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 500 * time.Millisecond, time.Second, 2 * time.Second},
	}
}

// buildCanonical 构建 canonical string: method\npath\ntimestamp\neventId\nbodySha256Hex
func buildCanonical(method, path string, ts int64, eventID, bodyHex string) string {
	return fmt.Sprintf("%s\n%s\n%d\n%s\n%s", strings.ToUpper(method), path, ts, eventID, bodyHex)
}

// hashHex 计算 sha256(body) 的 hex 小写
func hashHex(body []byte) string {
	h := sha256.Sum256(body)
	return hex.EncodeToString(h[:])
}

// SendEvent 发送事件 JSON，自动添加签名头
func (p *Pusher) SendEvent(ctx context.Context, endpoint string, event *Event) (int, []byte, error) {
	if p == nil || p.Client == nil {
		return 0, nil, errors.New("nil pusher")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return 0, nil, err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return 0, nil, err
	}
	ts := time.Now().Unix()
	bodyHex := hashHex(body)
	canonical := buildCanonical(http.MethodPost, u.Path, ts, event.EventID, bodyHex)
	sig := SignHMAC(p.Secret, canonical)

	// 简单重试（5xx/网络错误）
	var respBody []byte
	var code int
	var lastErr error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Signature", sig)
		req.Header.Set("X-Timestamp", fmt.Sprintf("%d", ts))
		req.Header.Set("X-Event-Id", event.EventID)

		resp, err := p.Client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			code = resp.StatusCode
			rb, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			respBody = rb
			if code >= 200 && code < 300 {
				return code, respBody, nil
			}
			// 非2xx：仅对5xx重试
			if code < 500 {
				return code, respBody, nil
			}
		}
		if attempt == p.Retries {
			break
		}
		backoff := p.Backoff[min(attempt, len(p.Backoff)-1)]
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	if lastErr != nil {
		return 0, nil, lastErr
	}
	return code, respBody, fmt.Errorf("http %d", code)
}
