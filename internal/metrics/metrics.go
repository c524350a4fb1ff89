// Registers:
//
//	#cbtrader_ticks_total{outcome}
//	#cbtrader_orders_total{side,result}
//	#cbtrader_requests_total{method,status}
//	#cbtrader_last_signal
//	#go_* and process_* system metrics
//
// and optionally exposes them on <listen_addr>/metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cbtrader/logger"
)

// Tick outcomes.
const (
	OutcomeBuy     = "buy"
	OutcomeSell    = "sell"
	OutcomeNoop    = "noop"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

var (
	once     sync.Once
	Registry = prometheus.NewRegistry()

	ticks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cbtrader_ticks_total",
			Help: "Hour-boundary evaluations by outcome",
		},
		[]string{"outcome"},
	)

	orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cbtrader_orders_total",
			Help: "Order submissions by side and result",
		},
		[]string{"side", "result"},
	)

	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cbtrader_requests_total",
			Help: "Exchange REST requests by method and status code",
		},
		[]string{"method", "status"},
	)

	lastSignal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cbtrader_last_signal",
		Help: "Most recent crossover signal, 1 for uptrend and 0 otherwise",
	})
)

func init() {
	Registry.MustRegister(ticks, orders, requests, lastSignal)
}

// Init registers the runtime collectors and, when addr is not empty,
// serves /metrics on addr until ctx is cancelled.
func Init(ctx context.Context, addr string) {
	once.Do(func() {
		Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		if addr == "" {
			return
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		log := logger.GetLogger().WithComponent("metrics")

		go func() {
			log.WithFields(logger.Fields{"addr": addr}).Info("serving prometheus metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("metrics server failed")
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	})
}

// IncrementTick counts one scheduler evaluation.
func IncrementTick(outcome string) {
	ticks.WithLabelValues(outcome).Inc()
}

// IncrementOrder counts one order submission attempt.
func IncrementOrder(side, result string) {
	orders.WithLabelValues(side, result).Inc()
}

// ObserveRequest counts one exchange request. status is 0 when no response
// was received.
func ObserveRequest(method string, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	requests.WithLabelValues(method, label).Inc()
}

// SetSignal records the latest signal.
func SetSignal(up bool) {
	if up {
		lastSignal.Set(1)
		return
	}
	lastSignal.Set(0)
}
