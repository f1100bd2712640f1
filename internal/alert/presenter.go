package alert

import (
	"log"

	"github.com/medora-health/remindd/internal/model"
)

// LogPresenter is the headless stand-in for the blocking alert modal. The
// HTTP surface reads the live alert from the session itself; this adapter
// just makes show/dismiss transitions visible in the logs.
type LogPresenter struct {
	logger *log.Logger
}

func NewLogPresenter(logger *log.Logger) *LogPresenter {
	return &LogPresenter{logger: logger}
}

func (p *LogPresenter) ShowAlert(r model.Reminder) {
	p.logger.Printf("alert: presenting %q (%s)", r.Name, r.Time)
}

func (p *LogPresenter) Dismiss() {
	p.logger.Printf("alert: dismissed")
}
