package fs

import (
	"syscall"
	"time"

	"github.com/lambertxiao/go-tweetfs/pkg/common"
	"github.com/lambertxiao/go-tweetfs/pkg/config"
	"github.com/lambertxiao/go-tweetfs/pkg/fs/fhandle"
	"github.com/lambertxiao/go-tweetfs/pkg/logg"
	"github.com/lambertxiao/go-tweetfs/pkg/publish"
	"github.com/lambertxiao/go-tweetfs/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

type FSOption struct {
	Uid          uint32
	Gid          uint32
	AttrTTL      time.Duration
	MaxSize      uint64 // 0 means unlimited
	DrainTimeout time.Duration
}

// Submitter receives the content of every released handle.
type Submitter interface {
	Submit(buf []byte) string
	Drain(timeout time.Duration) bool
}

// file system runtime
type FSR struct {
	opt    FSOption
	table  *fhandle.Table
	bridge Submitter
	clock  common.Clock
	// mount time, reported as the file's timestamps
	mtime time.Time

	registry *prometheus.Registry

	// 采集指标
	handlersGause         prometheus.GaugeFunc
	writtenSizeHistogram  prometheus.Histogram
	opsDurationsHistogram *prometheus.HistogramVec
	openDeniedCounter     prometheus.Counter
}

func InitFS(
	conf *config.FSConfig,
	creds *config.Credentials,
	registry *prometheus.Registry,
	registerer prometheus.Registerer,
) (*FSR, error) {
	clock := common.NewDefaultClock()

	var mirror publish.Mirror
	if conf.Mirror.Enabled() {
		m, err := publish.NewS3Mirror(conf.Mirror, clock, registerer)
		if err != nil {
			return nil, err
		}
		logg.Dlog.Infof("mirror published content to %s/%s", conf.Mirror.Endpoint, conf.Mirror.Bucket)
		mirror = m
	}

	publisher := publish.NewTwitterPublisher(conf.Api_endpoint, creds)
	bridge := publish.NewBridge(publisher, publish.BridgeOption{
		Parallel: conf.Parallel,
		Timeout:  conf.Publish_timeout,
		Mirror:   mirror,
		Clock:    clock,
	}, registerer)

	opt := FSOption{
		Uid:          conf.Uid,
		Gid:          conf.Gid,
		AttrTTL:      conf.Attr_ttl,
		MaxSize:      conf.Max_size,
		DrainTimeout: conf.Drain_timeout,
	}
	return NewFS(opt, bridge, clock, registry, registerer), nil
}

func NewFS(
	opt FSOption,
	bridge Submitter,
	clock common.Clock,
	registry *prometheus.Registry,
	registerer prometheus.Registerer,
) *FSR {
	fs := &FSR{
		opt:      opt,
		table:    fhandle.NewTable(),
		bridge:   bridge,
		clock:    clock,
		mtime:    clock.Now(),
		registry: registry,
	}
	fs.initMetrics(registerer)
	return fs
}

func (fs *FSR) initMetrics(registerer prometheus.Registerer) {
	fs.writtenSizeHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fuse_written_size_bytes",
		Help:    "size of write distributions.",
		Buckets: prometheus.LinearBuckets(4096, 4096, 32),
	})

	fs.opsDurationsHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fuse_ops_durations_histogram_seconds",
		Help:    "Operations latency distributions.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 1.5, 30),
	}, []string{"method"})

	fs.handlersGause = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "fuse_open_handlers",
		Help: "number of open files.",
	}, func() float64 {
		return float64(fs.table.Len())
	})

	fs.openDeniedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fuse_open_denied_total",
		Help: "opens rejected because they asked for read access.",
	})

	if registerer == nil {
		return
	}

	registerer.MustRegister(
		fs.writtenSizeHistogram,
		fs.opsDurationsHistogram,
		fs.handlersGause,
		fs.openDeniedCounter,
	)
}

type FS_OP uint8

const (
	FS_OP_WRITE FS_OP = iota + 0
	FS_OP_OPEN
	FS_OP_RELEASE
	FS_OP_OTHER
)

func (op FS_OP) String() string {
	switch op {
	case FS_OP_WRITE:
		return "WRITE"
	case FS_OP_OPEN:
		return "OPEN"
	case FS_OP_RELEASE:
		return "RELEASE"
	}
	return "OTHER"
}

func (fs *FSR) observeOP(op FS_OP, beginTime time.Time) {
	fs.opsDurationsHistogram.WithLabelValues(op.String()).Observe(fs.clock.Since(beginTime).Seconds())
}

func (fs *FSR) virtualFile() types.Inode {
	return types.VirtualFile(fs.opt.Uid, fs.opt.Gid, fs.mtime)
}

func (fs *FSR) destroy() {
	logg.Dlog.Infof("destroy, open handles:%d", fs.table.Len())
	if !fs.bridge.Drain(fs.opt.DrainTimeout) {
		logg.Dlog.Warnf("publish jobs still running after %v", fs.opt.DrainTimeout)
	}
}

const O_ACCMODE = 0x3

func IsWriteOnly(flags uint32) bool {
	return flags&O_ACCMODE == syscall.O_WRONLY
}
