package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notifier 定义告警输送接口。Send 返回非 nil 错误时视为未送达，
// 由调度器在下一个 tick 重试。
type Notifier interface {
	Send(ctx context.Context, chatID, text string) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	baseURL  string
	appURL   string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。appURL 非空时附带打开
// 小程序的按钮。
func NewTelegramNotifier(botToken, baseURL, appURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		baseURL:  strings.TrimRight(baseURL, "/"),
		appURL:   appURL,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Send 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Send(ctx context.Context, chatID, text string) error {
	payload := map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}
	if n.appURL != "" {
		payload["reply_markup"] = map[string]interface{}{
			"inline_keyboard": [][]map[string]interface{}{
				{{"text": "Open app", "web_app": map[string]string{"url": n.appURL}}},
			},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			if result.Description != "" {
				return fmt.Errorf("telegram 返回 ok=false: %s", result.Description)
			}
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Str("chat_id", chatID).Msg("告警已发送 (Telegram)")
	return nil
}

// RenderPriceAlert 渲染价格告警文本。
func RenderPriceAlert(asset, condition string, threshold, current decimal.Decimal) string {
	return fmt.Sprintf("🔔 Price alert: %s is %s %s (now ~%s)", asset, condition, threshold.String(), current.String())
}

// RenderAPYAlert 渲染收益率告警文本。
func RenderAPYAlert(asset, chain, condition string, threshold, current decimal.Decimal) string {
	return fmt.Sprintf("🔔 APY alert: %s (%s) APY is %s %s%% (now ~%s%%)", asset, chain, condition, threshold.String(), current.String())
}

var _ Notifier = (*TelegramNotifier)(nil)
