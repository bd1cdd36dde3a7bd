package app

import (
	"context"
	"errors"
	"time"

	"github.com/carlos-olivera/data-bs-cripto/internal/analysis"
)

// SimulateAlert 根据给定的首末价格伪造一份判定并走完告警流程。
func (a *App) SimulateAlert(ctx context.Context, field string, first, last float64) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	classifier := a.newClassifier()
	if classifier == nil {
		return errors.New("未配置任何告警通道")
	}

	variation := analysis.PercentageVariation(first, last)
	direction := analysis.DirectionUp
	if variation < 0 {
		direction = analysis.DirectionDown
	}

	verdict := analysis.Verdict{
		Significant:       true,
		FirstValue:        first,
		LastValue:         last,
		TotalVariationPct: variation,
		Direction:         direction,
	}

	threshold := a.Config.Analysis.Thresholds[field]

	_, produced := classifier.ClassifyAndDispatch(ctx, field, time.Now().UTC(), verdict, threshold)
	if !produced {
		return errors.New("该字段未映射到任何告警配置")
	}
	return nil
}
