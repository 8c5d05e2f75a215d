package app

import (
	"net/http"

	"go.uber.org/zap"

	cfgpkg "github.com/jisotalo/codesys-client/internal/config"
	"github.com/jisotalo/codesys-client/internal/notify"
)

// NewNotifyQueue 根据配置创建 Webhook 推送队列。未启用返回 nil
func NewNotifyQueue(cfg cfgpkg.NotifyConfig, logger *zap.Logger) *notify.Queue {
	if !cfg.Enabled || cfg.WebhookURL == "" {
		logger.Info("notify is disabled, skipping initialization")
		return nil
	}
	pusher := notify.NewPusher(&http.Client{Timeout: cfg.Timeout}, cfg.Secret)
	return notify.NewQueue(pusher, cfg.WebhookURL, cfg.QueueSize, cfg.Timeout, logger)
}
