package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestTelegramNotifierSuccess(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, "https://app.example", time.Second, testLogger())
	if err := notifier.Send(context.Background(), "chat", "🔔 Price alert: ETH is above 3000 (now ~3200)"); err != nil {
		t.Fatalf("Telegram Send 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if received["text"] == "" {
		t.Fatalf("text 应非空")
	}
	if received["reply_markup"] == nil {
		t.Fatalf("配置 appURL 时应携带 inline keyboard")
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "bot was blocked"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, "", time.Second, testLogger())
	if err := notifier.Send(context.Background(), "chat", "text"); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func TestTelegramNotifierHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, "", time.Second, testLogger())
	if err := notifier.Send(context.Background(), "chat", "text"); err == nil {
		t.Fatal("HTTP 错误应视为未送达")
	}
}

func TestRenderMessages(t *testing.T) {
	price := RenderPriceAlert("ETH", "above", decimal.NewFromInt(3000), decimal.NewFromInt(3200))
	if price != "🔔 Price alert: ETH is above 3000 (now ~3200)" {
		t.Fatalf("价格告警文本不正确: %q", price)
	}

	apy := RenderAPYAlert("USDC", "evm", "below", decimal.NewFromInt(5), decimal.RequireFromString("4.2"))
	if apy != "🔔 APY alert: USDC (evm) APY is below 5% (now ~4.2%)" {
		t.Fatalf("APY 告警文本不正确: %q", apy)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
