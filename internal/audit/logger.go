package audit

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lms_auth",
			Name:      "audit_events_total",
			Help:      "Audited business events by action and result",
		},
		[]string{"action", "result"},
	)

	guardOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lms_auth",
			Name:      "device_guard_outcomes_total",
			Help:      "Device guard decisions: first_bind, match, approved_rebind or the denial code",
		},
		[]string{"outcome"},
	)
)

// Logger writes audit=true lines for business events emitted by the
// application services.
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{log: log.With().Bool("audit", true).Logger()}
}

// Record matches the services' audit hook signature.
// Results other than success/allowed are logged at warn.
func (l *Logger) Record(action string, fields map[string]string) {
	result := fields["result"]
	eventsTotal.WithLabelValues(action, result).Inc()
	if action == "device.authorize" {
		outcome := fields["outcome"]
		if outcome == "" {
			outcome = fields["error_code"]
		}
		guardOutcomesTotal.WithLabelValues(outcome).Inc()
	}

	ev := l.log.Info()
	if result != "success" && result != "allowed" {
		ev = l.log.Warn()
	}
	ev = ev.Str("action", action)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fields[k]
		if strings.Contains(k, "email") {
			v = maskEmail(v)
		}
		ev = ev.Str(k, v)
	}
	ev.Msg(action)
}

// maskEmail keeps the first two characters of the local part and the domain.
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if len(email) < 5 || at < 0 {
		return "***"
	}
	if at < 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}
