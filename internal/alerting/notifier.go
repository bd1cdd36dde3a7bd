package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/carlos-olivera/data-bs-cripto/internal/analysis"
)

// Alert 封装一次趋势告警的上下文。
type Alert struct {
	Time           time.Time
	Field          string
	AssetLabel     string
	Direction      analysis.Direction
	VariationPct   float64
	ThresholdPct   float64
	Summary        string
	Recommendation string
	Channels       []string
}

// Urgent reports whether the move is large enough to flag as urgent.
func (a Alert) Urgent() bool {
	return math.Abs(a.VariationPct) > 5.0
}

// Notifier 定义告警输送接口。Delivery is best-effort: the caller logs a
// failure and moves on, since the trend re-evaluates on the next cycle.
type Notifier interface {
	SendAlert(ctx context.Context, alert Alert) error
}

// TelegramNotifier 通过 Telegram Bot API 推送消息。
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// SendAlert 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) SendAlert(ctx context.Context, alert Alert) error {
	payload := map[string]string{
		"chat_id":    n.chatID,
		"text":       renderMessage(alert),
		"parse_mode": "Markdown",
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
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram 返回 ok=false")
		}
	}

	n.logger.Info().Str("asset", alert.AssetLabel).
		Str("direction", string(alert.Direction)).
		Str("channels", strings.Join(alert.Channels, ",")).
		Msg("告警已发送 (Telegram)")
	return nil
}

func renderMessage(alert Alert) string {
	urgencyEmoji := "ℹ️"
	if alert.Urgent() {
		urgencyEmoji = "🚨"
	}

	trendEmoji := "📈"
	trendColor := "🟢"
	trendWord := "Upward"
	if alert.Direction == analysis.DirectionDown {
		trendEmoji = "📉"
		trendColor = "🔴"
		trendWord = "Downward"
	}

	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("%s *%s trend detected: %s* %s\n\n", urgencyEmoji, trendWord, alert.AssetLabel, urgencyEmoji))
	builder.WriteString(fmt.Sprintf("%s *Variation:* %.2f%% (threshold %.2f%%)\n\n", trendEmoji, alert.VariationPct, alert.ThresholdPct))
	builder.WriteString(fmt.Sprintf("%s *Details:*\n%s\n", trendColor, alert.Summary))
	if alert.Recommendation != "" {
		builder.WriteString(fmt.Sprintf("\n💡 *Recommendation:*\n%s\n", alert.Recommendation))
	}
	builder.WriteString(fmt.Sprintf("\nWindow end: %s UTC", alert.Time.UTC().Format(time.RFC3339)))
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
