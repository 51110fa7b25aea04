package stratumd

import (
	"net"
	"net/http"

	geoip2 "github.com/oschwald/geoip2-golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	dropSmall = "small"
	dropACL   = "acl"
	dropRate  = "rate"
)

// Statistic exports responder counters. All methods accept a nil receiver
// so the responder runs unchanged without metrics.
type Statistic struct {
	registry *prometheus.Registry

	reqCounter      prometheus.Counter
	replyCounter    prometheus.Counter
	dropCounter     *prometheus.CounterVec
	sendFailCounter prometheus.Counter
	restartCounter  prometheus.Counter
	ccCounter       *prometheus.CounterVec
	stateGauge      prometheus.Gauge
	delayGauge      prometheus.Gauge
	geoDB           *geoip2.Reader
}

// NewStatistic registers the collectors on a private registry. geoDB is
// an optional GeoIP2 country database path.
func NewStatistic(geoDB string) (s *Statistic, err error) {
	s = &Statistic{registry: prometheus.NewRegistry()}
	if geoDB != "" {
		s.geoDB, err = geoip2.Open(geoDB)
		if err != nil {
			return nil, err
		}
	}

	s.reqCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ntp",
		Subsystem: "requests",
		Name:      "total",
		Help:      "The total number of received datagrams",
	})
	s.replyCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ntp",
		Subsystem: "replies",
		Name:      "total",
		Help:      "The total number of sent replies",
	})
	s.dropCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ntp",
		Subsystem: "requests",
		Name:      "dropped_total",
		Help:      "Datagrams dropped without reply",
	}, []string{"reason"})
	s.sendFailCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ntp",
		Subsystem: "replies",
		Name:      "send_failures_total",
		Help:      "Failed reply send attempts",
	})
	s.restartCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ntp",
		Subsystem: "stat",
		Name:      "restarts_total",
		Help:      "Socket restarts of the responder",
	})
	s.ccCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ntp",
		Subsystem: "requests",
		Name:      "country_total",
		Help:      "Replies by client country",
	}, []string{"cc"})
	s.stateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ntp",
		Subsystem: "stat",
		Name:      "state",
		Help:      "Responder state, 0 creating 1 binding 2 listening 3 answering",
	})
	s.delayGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ntp",
		Subsystem: "stat",
		Name:      "delay_sec",
		Help:      "The root delay of the last reply",
	})

	s.registry.MustRegister(s.reqCounter, s.replyCounter, s.dropCounter,
		s.sendFailCounter, s.restartCounter, s.ccCounter, s.stateGauge,
		s.delayGauge)
	return
}

func (s *Statistic) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// ListenAndServe exposes /metrics on addr.
func (s *Statistic) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())
	logger.Infof("listen metric: %s", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Statistic) Close() error {
	if s == nil || s.geoDB == nil {
		return nil
	}
	return s.geoDB.Close()
}

func (s *Statistic) request() {
	if s != nil {
		s.reqCounter.Inc()
	}
}

func (s *Statistic) drop(reason string) {
	if s != nil {
		s.dropCounter.WithLabelValues(reason).Inc()
	}
}

func (s *Statistic) sendFailed() {
	if s != nil {
		s.sendFailCounter.Inc()
	}
}

func (s *Statistic) restart() {
	if s != nil {
		s.restartCounter.Inc()
	}
}

func (s *Statistic) state(st State) {
	if s != nil {
		s.stateGauge.Set(float64(st))
	}
}

func (s *Statistic) reply(to net.Addr, p *Packet) {
	if s == nil {
		return
	}
	s.replyCounter.Inc()
	s.delayGauge.Set(p.RootDelay.Duration().Seconds())
	s.logIP(to)
}

func (s *Statistic) logIP(to net.Addr) {
	if s.geoDB == nil {
		return
	}
	ua, ok := to.(*net.UDPAddr)
	if !ok {
		return
	}
	if isLan(ua.IP) {
		s.ccCounter.WithLabelValues("LAN").Inc()
		return
	}
	country, err := s.geoDB.Country(ua.IP)
	if err != nil {
		logger.WithError(err).Warn("stat ip")
		return
	}
	s.ccCounter.WithLabelValues(country.Country.IsoCode).Inc()
}
