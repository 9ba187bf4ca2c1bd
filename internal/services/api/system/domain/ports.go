package domain

import "facewarden/internal/services/stats"

// Alerting is the dispatcher surface the system endpoints report on
type Alerting interface {
	WebhookEnabled() bool
	WebhookURL() string
}

// Roster reports how many identities are enrolled
type Roster interface {
	Len() int
}

// Telemetry surfaces the runtime counters
type Telemetry interface {
	Snapshot() stats.Snapshot
}
