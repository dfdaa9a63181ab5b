package export

import (
	"context"
	"grana/internal/core"
)

// Ports for outbound report adapters.
type (
	// ReportWriter publishes a full annual report, replacing whatever was
	// published before for the same year.
	ReportWriter interface {
		WriteAnnualReport(ctx context.Context, report core.AnnualReport) error
	}
)
