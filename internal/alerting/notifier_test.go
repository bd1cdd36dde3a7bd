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

	"github.com/carlos-olivera/data-bs-cripto/internal/analysis"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testAlert() Alert {
	return Alert{
		Time:           time.Now(),
		Field:          "bol2usdt",
		AssetLabel:     "USDT/BOB",
		Direction:      analysis.DirectionUp,
		VariationPct:   3.5,
		ThresholdPct:   2.0,
		Summary:        "Initial value: 6.90\nFinal value: 7.15\nVolatility: 0.04",
		Recommendation: "Possible opportunity to SELL USDT (high price)",
		Channels:       []string{"telegram"},
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
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

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.SendAlert(context.Background(), testAlert()); err != nil {
		t.Fatalf("Telegram SendAlert 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if received["parse_mode"] != "Markdown" {
		t.Fatalf("parse_mode 应为 Markdown: %#v", received)
	}
	if !strings.Contains(received["text"], "USDT/BOB") {
		t.Fatalf("text 应包含资产标签: %q", received["text"])
	}
	if !strings.Contains(received["text"], "Recommendation") {
		t.Fatalf("text 应包含建议: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())

	if err := notifier.SendAlert(context.Background(), testAlert()); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func TestRenderMessageDownward(t *testing.T) {
	alert := testAlert()
	alert.Direction = analysis.DirectionDown
	alert.VariationPct = -6.2
	alert.Recommendation = ""

	text := renderMessage(alert)
	if !strings.Contains(text, "Downward trend detected") {
		t.Fatalf("expected downward title, got %q", text)
	}
	if !strings.Contains(text, "🚨") {
		t.Fatal("a move beyond 5% must be flagged urgent")
	}
	if strings.Contains(text, "Recommendation") {
		t.Fatal("empty recommendation must be omitted")
	}
}
