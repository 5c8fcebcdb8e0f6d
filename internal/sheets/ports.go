package sheets

import (
	"context"

	"payback/internal/core"
)

// Ports for the month mirror.
type (
	// MonthWriter replaces the mirrored content of one period.
	MonthWriter interface {
		WriteMonth(ctx context.Context, view core.MonthView) (ref string, err error)
		ClearMonth(ctx context.Context, period core.Period) error
	}
)
