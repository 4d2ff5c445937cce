package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/vigil-backend/internal/service"
)

// SweepWorker drives the automatic-submission sweep on a fixed interval.
// The enforcement decision itself lives in the attendance service; this
// loop only ticks it and reports.
type SweepWorker struct {
	attendance *service.AttendanceService
	interval   time.Duration
	log        zerolog.Logger
}

func NewSweepWorker(attendance *service.AttendanceService, interval time.Duration, log zerolog.Logger) *SweepWorker {
	return &SweepWorker{
		attendance: attendance,
		interval:   interval,
		log:        log.With().Str("component", "sweep_worker").Logger(),
	}
}

func (w *SweepWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("SweepWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("SweepWorker stopping")
			return

		case <-ticker.C:
			submitted, err := w.attendance.SweepDue(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.log.Error().Err(err).Msg("Sweep tick failed")
				continue
			}
			if submitted > 0 {
				w.log.Info().Int("submitted", submitted).Msg("Auto-submitted expired attendances")
			}
		}
	}
}
