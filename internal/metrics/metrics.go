package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts lifecycle activity. A nil *Recorder records nothing.
type Recorder struct {
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	sessions    prometheus.Gauge
}

// New registers the demandline collectors on reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "demandline",
			Name:      "transitions_total",
			Help:      "Lifecycle actions applied, by action.",
		}, []string{"action"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "demandline",
			Name:      "rejections_total",
			Help:      "Lifecycle actions rejected, by action and reason.",
		}, []string{"action", "reason"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "demandline",
			Name:      "sessions_open",
			Help:      "Sessions currently open.",
		}),
	}
	for _, c := range []prometheus.Collector{r.transitions, r.rejections, r.sessions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) Transition(action string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(action).Inc()
}

func (r *Recorder) Rejection(action, reason string) {
	if r == nil {
		return
	}
	r.rejections.WithLabelValues(action, reason).Inc()
}

func (r *Recorder) SessionOpened() {
	if r == nil {
		return
	}
	r.sessions.Inc()
}

func (r *Recorder) SessionClosed() {
	if r == nil {
		return
	}
	r.sessions.Dec()
}
