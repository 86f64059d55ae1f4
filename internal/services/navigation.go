package services

import (
	"time"

	"crop-claim-service/internal/models"
)

// Navigator tracks the active view. Guarded by the owning Session.
type Navigator struct {
	active models.Tab
	delay  time.Duration
	timer  *time.Timer
}

func NewNavigator(historyDelay time.Duration) *Navigator {
	return &Navigator{active: models.TabScan, delay: historyDelay}
}

func (n *Navigator) Active() models.Tab {
	return n.active
}

func (n *Navigator) Switch(tab models.Tab) error {
	if !models.IsValidTab(tab) {
		return ErrInvalidTab
	}
	n.active = tab
	return nil
}

// ScheduleHistory runs fire after the history delay so the success notice stays
// visible first. fire must take the session lock itself.
func (n *Navigator) ScheduleHistory(fire func()) {
	n.Stop()
	n.timer = time.AfterFunc(n.delay, fire)
}

func (n *Navigator) Stop() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}
