package publish

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/lambertxiao/go-tweetfs/pkg/common"
	"github.com/lambertxiao/go-tweetfs/pkg/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	S3_META_JOB       = "job-id"
	S3_META_PUBLISHED = "published-at"
)

// S3Mirror writes each published text to <prefix>/<yyyy/mm/dd>/<job id>.txt.
type S3Mirror struct {
	client *minio.Client
	conf   config.MirrorConf
	clock  common.Clock

	objectReqsHistogram *prometheus.HistogramVec
	objectDataBytes     *prometheus.CounterVec
}

func NewS3Mirror(conf config.MirrorConf, clock common.Clock, reg prometheus.Registerer) (*S3Mirror, error) {
	client, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKey, conf.SecretKey, ""),
		Secure: conf.Secure,
		Region: conf.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create mirror client")
	}

	m := &S3Mirror{client: client, conf: conf, clock: clock}
	m.initMetrics(reg)
	return m, nil
}

func (m *S3Mirror) initMetrics(reg prometheus.Registerer) {
	m.objectReqsHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "object_request_durations_histogram_seconds",
		Help:    "Object requests latency distributions.",
		Buckets: prometheus.ExponentialBuckets(0.01, 1.5, 25),
	}, []string{"method"})

	m.objectDataBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "object_request_data_bytes",
		Help: "Object requests size in bytes.",
	}, []string{"method"})

	if reg == nil {
		return
	}

	reg.MustRegister(m.objectReqsHistogram)
	reg.MustRegister(m.objectDataBytes)
}

func (m *S3Mirror) objectKey(id string, at time.Time) string {
	return path.Join(strings.Trim(m.conf.Prefix, "/"), at.UTC().Format("2006/01/02"), id+".txt")
}

func (m *S3Mirror) Store(ctx context.Context, id string, text string) error {
	now := m.clock.Now()
	key := m.objectKey(id, now)

	_, err := m.client.PutObject(
		ctx,
		m.conf.Bucket,
		key,
		strings.NewReader(text),
		int64(len(text)),
		minio.PutObjectOptions{
			ContentType: "text/plain; charset=utf-8",
			UserMetadata: map[string]string{
				S3_META_JOB:       id,
				S3_META_PUBLISHED: now.UTC().Format(time.RFC3339),
			},
		},
	)
	m.objectReqsHistogram.WithLabelValues("WRITE").Observe(m.clock.Since(now).Seconds())
	if err != nil {
		return errors.Wrapf(err, "mirror %s/%s", m.conf.Bucket, key)
	}
	m.objectDataBytes.WithLabelValues("WRITE").Add(float64(len(text)))
	return nil
}
