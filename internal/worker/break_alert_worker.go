package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/vigil-backend/internal/service"
)

// BreakAlertPollInterval is how often open breaks are checked against
// the overstay threshold. Coarser than the submission sweep: a minute of
// slack on an advisory is acceptable, a minute of exam time is not.
const BreakAlertPollInterval = 30 * time.Second

// BreakAlertWorker raises the break-overstay advisories. The
// once-per-episode dedup lives in the attendance service.
type BreakAlertWorker struct {
	attendance *service.AttendanceService
	log        zerolog.Logger
}

func NewBreakAlertWorker(attendance *service.AttendanceService, log zerolog.Logger) *BreakAlertWorker {
	return &BreakAlertWorker{
		attendance: attendance,
		log:        log.With().Str("component", "break_alert_worker").Logger(),
	}
}

func (w *BreakAlertWorker) Start(ctx context.Context) {
	w.log.Info().Msg("BreakAlertWorker started")

	ticker := time.NewTicker(BreakAlertPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("BreakAlertWorker stopping")
			return

		case <-ticker.C:
			alerted, err := w.attendance.SweepBreakAlerts(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.log.Error().Err(err).Msg("Break alert tick failed")
				continue
			}
			if alerted > 0 {
				w.log.Info().Int("alerted", alerted).Msg("Break overstay advisories raised")
			}
		}
	}
}
