package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carlos-olivera/data-bs-cripto/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Scheduler: config.SchedulerConfig{
			SampleInterval:   time.Hour,
			AnalysisInterval: time.Hour,
		},
		Analysis: config.AnalysisConfig{
			Lookback:        4 * time.Hour,
			OffersToAverage: 10,
		},
	}
}

func TestRunWithoutDatabaseKeepsSampling(t *testing.T) {
	a := NewApp(testConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("未配置数据库时 run 不应立即退出: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cancelled run must stop cleanly, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}
