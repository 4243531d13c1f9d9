package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	BackendRequests *prometheus.CounterVec
	GateRedirects   *prometheus.CounterVec
	ChatSends       prometheus.Counter
	ChatFailures    prometheus.Counter
	ChatThrottled   prometheus.Counter
	Logins          *prometheus.CounterVec
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "astraconsole",
				Name:      "backend_requests_total",
				Help:      "Requests sent to the AstraTickets backend by method and status code",
			}, []string{"method", "code"}),
			GateRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "astraconsole",
				Name:      "gate_redirects_total",
				Help:      "Redirects issued by the session gate by target",
			}, []string{"target"}),
			ChatSends: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "astraconsole",
				Name:      "chat_sends_total",
				Help:      "AI chat messages sent from the assistant panel",
			}),
			ChatFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "astraconsole",
				Name:      "chat_failures_total",
				Help:      "AI chat sends that ended in an error entry",
			}),
			ChatThrottled: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "astraconsole",
				Name:      "chat_throttled_total",
				Help:      "AI chat sends rejected by the hourly throttle",
			}),
			Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "astraconsole",
				Name:      "logins_total",
				Help:      "Login attempts by outcome",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			global.BackendRequests,
			global.GateRedirects,
			global.ChatSends,
			global.ChatFailures,
			global.ChatThrottled,
			global.Logins,
		)
	})
	return global
}

// ObserveBackend counts one backend round trip. Status 0 means the request
// never got a response.
func (m *Metrics) ObserveBackend(method string, status int) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.BackendRequests.WithLabelValues(method, code).Inc()
}

func (m *Metrics) ObserveRedirect(target string) {
	if m == nil {
		return
	}
	m.GateRedirects.WithLabelValues(target).Inc()
}

func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

// ObserveChat counts a chat send. Failed and throttled sends also count
// toward ChatSends.
func (m *Metrics) ObserveChat(failed, throttled bool) {
	if m == nil {
		return
	}
	m.ChatSends.Inc()
	switch {
	case throttled:
		m.ChatThrottled.Inc()
	case failed:
		m.ChatFailures.Inc()
	}
}
