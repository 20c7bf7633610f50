package fs

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/lambertxiao/go-tweetfs/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
)

const MetricPrefix = "gotweetfs_"

var (
	start = time.Now()
	cpu   = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "cpu_usage",
		Help: "Accumulated CPU usage in seconds.",
	}, utils.CPUSeconds)

	memory = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "memory",
		Help: "Used memory in bytes.",
	}, func() float64 {
		return float64(utils.ResidentMemory())
	})

	uptime = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "uptime",
		Help: "Total running time in seconds.",
	}, func() float64 {
		return time.Since(start).Seconds()
	})
)

func InitMetricRegistry(mountPoint string) (*prometheus.Registry, prometheus.Registerer) {
	registry := prometheus.NewRegistry()
	registerer := prometheus.WrapRegistererWithPrefix(
		MetricPrefix,
		prometheus.WrapRegistererWith(prometheus.Labels{"mp": mountPoint}, registry))

	registerer.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registerer.MustRegister(collectors.NewGoCollector())
	return registry, registerer
}

func RegistMetrics(registerer prometheus.Registerer) {
	if registerer == nil {
		return
	}
	registerer.MustRegister(cpu)
	registerer.MustRegister(memory)
	registerer.MustRegister(uptime)
}

// FlattenMetrics renders metric families as "name value" lines. Label values
// other than mp are appended to the name, histograms become _total and _sum.
func FlattenMetrics(mfs []*dto.MetricFamily) []byte {
	w := bytes.NewBuffer(nil)
	format := func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	for _, mf := range mfs {
		for _, m := range mf.Metric {
			name := mf.GetName()
			for _, l := range m.Label {
				if l.GetName() != "mp" {
					name += "_" + l.GetValue()
				}
			}
			switch mf.GetType() {
			case dto.MetricType_GAUGE:
				_, _ = fmt.Fprintf(w, "%s %s\n", name, format(m.GetGauge().GetValue()))
			case dto.MetricType_COUNTER:
				_, _ = fmt.Fprintf(w, "%s %s\n", name, format(m.GetCounter().GetValue()))
			case dto.MetricType_UNTYPED:
				_, _ = fmt.Fprintf(w, "%s %s\n", name, format(m.GetUntyped().GetValue()))
			case dto.MetricType_HISTOGRAM:
				_, _ = fmt.Fprintf(w, "%s_total %d\n", name, m.GetHistogram().GetSampleCount())
				_, _ = fmt.Fprintf(w, "%s_sum %s\n", name, format(m.GetHistogram().GetSampleSum()))
			}
		}
	}
	return w.Bytes()
}
