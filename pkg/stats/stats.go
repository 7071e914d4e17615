package stats

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const (
	BYTE = 1 << (10 * iota)
	KILOBYTE
	MEGABYTE
	GIGABYTE
	TERABYTE
)

var (
	loginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradebot_logins_total",
		Help: "Number of login attempts per account and result.",
	}, []string{"account", "result"})
	offersSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradebot_offers_sent_total",
		Help: "Number of trade offers successfully sent per account.",
	}, []string{"account"})
	offersAbandonedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradebot_offers_abandoned_total",
		Help: "Number of trade offers abandoned after too many failed sends.",
	}, []string{"account"})
	sendRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradebot_send_retries_total",
		Help: "Number of offer send retries per account.",
	}, []string{"account"})
	confirmationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradebot_confirmations_total",
		Help: "Number of confirmed trade offers per account.",
	}, []string{"account"})
	confirmRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradebot_confirmation_retries_total",
		Help: "Number of confirmation retries per account.",
	}, []string{"account"})
)

func init() {
	prometheus.MustRegister(
		loginsTotal, offersSentTotal, offersAbandonedTotal,
		sendRetriesTotal, confirmationsTotal, confirmRetriesTotal,
	)
}

func IncLogin(account string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	loginsTotal.WithLabelValues(account, result).Inc()
}

func IncOfferSent(account string) {
	offersSentTotal.WithLabelValues(account).Inc()
}

func IncOfferAbandoned(account string) {
	offersAbandonedTotal.WithLabelValues(account).Inc()
}

func IncSendRetry(account string) {
	sendRetriesTotal.WithLabelValues(account).Inc()
}

func IncConfirmation(account string) {
	confirmationsTotal.WithLabelValues(account).Inc()
}

func IncConfirmRetry(account string) {
	confirmRetriesTotal.WithLabelValues(account).Inc()
}

// EnableMemoryStatistics enables go routine that periodically prints memory
// usage of the go process.
func EnableMemoryStatistics(ctx context.Context, interval time.Duration, datadir string) {

	ticker := time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-ticker.C:
				PrintMemoryStatistics()
				PrintNumOfRoutines()
			case <-ctx.Done():
				err := DumpPrometheusDefaults(datadir)
				if err != nil {
					fmt.Println(err)
				}
				return
			}
		}
	}()
}

// toGigabytes returns given memory in bytes to gigabytes.
func toGigabytes(bytes uint64) float64 {
	return float64(bytes) / GIGABYTE
}

// PrintMemoryStatistics prints memory statistics using go runtime library.
func PrintMemoryStatistics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	bytesTotalAllocated := memStats.TotalAlloc
	bytesHeapAllocated := memStats.HeapAlloc
	countMalloc := memStats.Mallocs
	countFrees := memStats.Frees

	log.Infof(
		"Total allocated: %.3fGB, Heap allocated: %.3fGB, "+
			"Allocated objects count: %v, Freed objects count: %v",
		toGigabytes(bytesTotalAllocated),
		toGigabytes(bytesHeapAllocated),
		countMalloc,
		countFrees,
	)
}

// DumpPrometheusDefaults write default Prometheus metrics to a file
func DumpPrometheusDefaults(datadir string) error {
	file, err := os.OpenFile(
		datadir+"/stats",
		os.O_APPEND|os.O_CREATE|os.O_RDWR,
		0644,
	)
	if err != nil {
		return err
	}
	writer := bufio.NewWriter(file)

	metricFamily, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	for _, v := range metricFamily {
		_, err := writer.WriteString(v.String() + "\n")
		if err != nil {
			return err
		}
	}

	writer.Flush()
	file.Close()

	return nil
}

// PrintNumOfRoutines prints number of go routines currently running
func PrintNumOfRoutines() {
	log.Infof("Num of go routines: %v\n", runtime.NumGoroutine())
}
