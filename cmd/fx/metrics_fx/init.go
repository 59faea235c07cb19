package metrics_fx

import (
	"go.uber.org/fx"
	"sajupia/pkg/observability"
)

var Module = fx.Provide(observability.NewDefaultMetrics)
