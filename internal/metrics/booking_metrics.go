package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics содержит метрики ядра букинга.
type BookingMetrics struct {
	// Счётчики исходов букинга
	bookingAttempts  prometheus.Counter
	bookingConfirmed prometheus.Counter
	bookingRejected  *prometheus.CounterVec

	// Ретраи по конфликтам сериализации
	serializationRetries  prometheus.Counter
	bookingConflictsFinal prometheus.Counter

	// Гистограмма времени транзакции букинга
	txDuration *prometheus.HistogramVec

	// Жизненный цикл столов и счетов
	ordersOpened       prometheus.Counter
	ordersClosed       prometheus.Counter
	tableTransitions   *prometheus.CounterVec
	zombieFreesBlocked prometheus.Counter

	// События timeline/outbox
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewBookingMetrics создаёт новый экземпляр метрик букинга.
func NewBookingMetrics() *BookingMetrics {
	return newBookingMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newBookingMetricsWithRegisterer(registerer prometheus.Registerer) *BookingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &BookingMetrics{
		bookingAttempts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rbs_booking_attempts_total",
			Help: "Total number of booking transactions attempted",
		}),
		bookingConfirmed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rbs_booking_confirmed_total",
			Help: "Total number of reservations confirmed",
		}),
		bookingRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "rbs_booking_rejected_total",
			Help: "Total number of booking domain rejections grouped by reason",
		}, []string{"reason"}),
		serializationRetries: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rbs_booking_serialization_retries_total",
			Help: "Total number of serialization aborts that triggered a retry",
		}),
		bookingConflictsFinal: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rbs_booking_conflicts_total",
			Help: "Total number of bookings that failed after exhausting retries",
		}),
		txDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "rbs_booking_tx_duration_seconds",
			Help:    "Duration of booking transactions in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		ordersOpened: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rbs_orders_opened_total",
			Help: "Total number of orders opened on tables",
		}),
		ordersClosed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rbs_orders_closed_total",
			Help: "Total number of orders closed",
		}),
		tableTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "rbs_table_transitions_total",
			Help: "Total number of committed table status transitions grouped by target status",
		}, []string{"to"}),
		zombieFreesBlocked: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rbs_table_zombie_frees_blocked_total",
			Help: "Total number of free-table attempts rejected because of an open bill",
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rbs_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "rbs_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordBookingAttempt увеличивает счётчик попыток букинга.
func (m *BookingMetrics) RecordBookingAttempt() {
	m.bookingAttempts.Inc()
}

// RecordBookingConfirmed увеличивает счётчик подтверждённых броней.
func (m *BookingMetrics) RecordBookingConfirmed() {
	m.bookingConfirmed.Inc()
}

// RecordBookingRejected увеличивает счётчик доменных отказов по причине.
func (m *BookingMetrics) RecordBookingRejected(reason string) {
	m.bookingRejected.WithLabelValues(reason).Inc()
}

// RecordSerializationRetry увеличивает счётчик ретраев по конфликту сериализации.
func (m *BookingMetrics) RecordSerializationRetry() {
	m.serializationRetries.Inc()
}

// RecordBookingConflict увеличивает счётчик букингов, упавших после всех ретраев.
func (m *BookingMetrics) RecordBookingConflict() {
	m.bookingConflictsFinal.Inc()
}

// RecordTxDuration записывает длительность транзакции букинга.
func (m *BookingMetrics) RecordTxDuration(operation string, duration time.Duration) {
	m.txDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordOrderOpened увеличивает счётчик открытых счетов.
func (m *BookingMetrics) RecordOrderOpened() {
	m.ordersOpened.Inc()
}

// RecordOrderClosed увеличивает счётчик закрытых счетов.
func (m *BookingMetrics) RecordOrderClosed() {
	m.ordersClosed.Inc()
}

// RecordTableTransition увеличивает счётчик переходов стола в целевой статус.
func (m *BookingMetrics) RecordTableTransition(to string) {
	m.tableTransitions.WithLabelValues(to).Inc()
}

// RecordZombieFreeBlocked увеличивает счётчик заблокированных освобождений стола.
func (m *BookingMetrics) RecordZombieFreeBlocked() {
	m.zombieFreesBlocked.Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *BookingMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *BookingMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
