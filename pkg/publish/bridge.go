package publish

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lambertxiao/go-tweetfs/pkg/common"
	"github.com/lambertxiao/go-tweetfs/pkg/logg"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	RESULT_SUCCESS = "success"
	RESULT_FAILURE = "failure"
)

type BridgeOption struct {
	Parallel int
	Timeout  time.Duration
	// optional
	Mirror Mirror
	Clock  common.Clock
}

// Bridge hands released buffers to the Publisher. Each submission runs on its
// own goroutine, bounded by the parallel pool; callers never wait for the
// outcome, which is only logged and counted.
type Bridge struct {
	publisher Publisher
	mirror    Mirror
	timeout   time.Duration
	pool      *common.ParallelPool
	clock     common.Clock

	publishTotal     *prometheus.CounterVec
	mirrorTotal      *prometheus.CounterVec
	publishDurations prometheus.Histogram
	publishSize      prometheus.Histogram
	inflightGauge    prometheus.GaugeFunc
}

func NewBridge(publisher Publisher, opt BridgeOption, registerer prometheus.Registerer) *Bridge {
	clock := opt.Clock
	if clock == nil {
		clock = common.NewDefaultClock()
	}

	b := &Bridge{
		publisher: publisher,
		mirror:    opt.Mirror,
		timeout:   opt.Timeout,
		pool:      common.NewParallelPool(opt.Parallel),
		clock:     clock,
	}
	b.initMetrics(registerer)
	return b
}

func (b *Bridge) initMetrics(registerer prometheus.Registerer) {
	b.publishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publish_total",
		Help: "Publish attempts by result.",
	}, []string{"result"})

	b.mirrorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mirror_total",
		Help: "Mirror attempts by result.",
	}, []string{"result"})

	b.publishDurations = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "publish_durations_histogram_seconds",
		Help:    "Publish latency distributions.",
		Buckets: prometheus.ExponentialBuckets(0.01, 1.5, 25),
	})

	b.publishSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "publish_size_bytes",
		Help:    "Size of published content.",
		Buckets: prometheus.ExponentialBuckets(16, 2, 16),
	})

	b.inflightGauge = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "publish_inflight_cnt",
		Help: "number of publish jobs talking to the service.",
	}, func() float64 {
		return float64(b.pool.Running())
	})

	if registerer == nil {
		return
	}

	registerer.MustRegister(
		b.publishTotal,
		b.mirrorTotal,
		b.publishDurations,
		b.publishSize,
		b.inflightGauge,
	)
}

// Submit takes ownership of buf and schedules its publication. It returns the
// job id used in the logs.
func (b *Bridge) Submit(buf []byte) string {
	id := uuid.NewString()
	text := Decode(buf)
	logg.Dlog.Debugf("publish job:%s status:%q", id, text)

	b.pool.Go(func() {
		b.publish(id, text)
	})
	return id
}

// jobContext bounds one request of a job by the configured timeout.
func (b *Bridge) jobContext() (context.Context, context.CancelFunc) {
	if b.timeout > 0 {
		return context.WithTimeout(context.Background(), b.timeout)
	}
	return context.WithCancel(context.Background())
}

func (b *Bridge) publish(id string, text string) {
	ctx, cancel := b.jobContext()
	defer cancel()

	st := b.clock.Now()
	err := b.publisher.Publish(ctx, text)
	b.publishDurations.Observe(b.clock.Since(st).Seconds())

	if err != nil {
		b.publishTotal.WithLabelValues(RESULT_FAILURE).Inc()
		logg.Dlog.Errorf("publish job:%s size:%d err:%v", id, len(text), err)
		return
	}

	b.publishTotal.WithLabelValues(RESULT_SUCCESS).Inc()
	b.publishSize.Observe(float64(len(text)))
	logg.Dlog.Infof("publish job:%s size:%d done", id, len(text))

	if b.mirror == nil {
		return
	}

	// the mirror gets its own budget, a slow publish must not starve it
	mctx, mcancel := b.jobContext()
	defer mcancel()
	if err := b.mirror.Store(mctx, id, text); err != nil {
		b.mirrorTotal.WithLabelValues(RESULT_FAILURE).Inc()
		logg.Dlog.Warnf("mirror job:%s err:%v", id, err)
		return
	}
	b.mirrorTotal.WithLabelValues(RESULT_SUCCESS).Inc()
}

// Wait blocks until every submitted job finished.
func (b *Bridge) Wait() {
	b.pool.Wait()
}

// Drain waits at most timeout for in-flight jobs and reports whether they all
// finished.
func (b *Bridge) Drain(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return b.pool.WaitContext(ctx)
}
