package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics — счётчики радара. Регистрируются в переданном реестре,
// чтобы тесты могли использовать собственный.
type Metrics struct {
	Passes         *prometheus.CounterVec
	PassDuration   prometheus.Histogram
	CatalogSize    prometheus.Gauge
	NotificationOp *prometheus.CounterVec
	NewGifts       prometheus.Counter
	AlertAttempts  *prometheus.CounterVec
	EventsSent     *prometheus.CounterVec
}

// New создаёт и регистрирует метрики.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gifts_radar_passes_total",
			Help: "Количество проходов сверки по результату",
		}, []string{"outcome"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gifts_radar_pass_duration_seconds",
			Help:    "Длительность прохода сверки",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		CatalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gifts_radar_catalog_size",
			Help: "Количество подарков в последнем каталоге",
		}),
		NotificationOp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gifts_radar_notification_ops_total",
			Help: "Операции над парами сообщений по типу и результату",
		}, []string{"op", "outcome"}),
		NewGifts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gifts_radar_new_gifts_total",
			Help: "Количество обнаруженных новых подарков",
		}),
		AlertAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gifts_radar_alert_attempts_total",
			Help: "Попытки оповещения по каналу и результату",
		}, []string{"channel", "outcome"}),
		EventsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gifts_radar_events_total",
			Help: "События о новых подарках, отправленные в Kafka",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.Passes, m.PassDuration, m.CatalogSize, m.NotificationOp, m.NewGifts, m.AlertAttempts, m.EventsSent)
	return m
}

// Outcome переводит ошибку в метку результата.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
