package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lambertxiao/go-tweetfs/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scrape = `# HELP gotweetfs_publish_total Publish attempts by result.
# TYPE gotweetfs_publish_total counter
gotweetfs_publish_total{mp="/tmp/tweet",result="success"} 3
gotweetfs_publish_total{mp="/tmp/tweet",result="failure"} 1
# HELP gotweetfs_fuse_open_handlers number of open files.
# TYPE gotweetfs_fuse_open_handlers gauge
gotweetfs_fuse_open_handlers{mp="/tmp/tweet"} 2
# HELP gotweetfs_publish_durations_histogram_seconds Publish latency distributions.
# TYPE gotweetfs_publish_durations_histogram_seconds histogram
gotweetfs_publish_durations_histogram_seconds_bucket{mp="/tmp/tweet",le="0.5"} 3
gotweetfs_publish_durations_histogram_seconds_bucket{mp="/tmp/tweet",le="+Inf"} 4
gotweetfs_publish_durations_histogram_seconds_sum{mp="/tmp/tweet"} 1.5
gotweetfs_publish_durations_histogram_seconds_count{mp="/tmp/tweet"} 4
`

func TestParseStats(t *testing.T) {
	stats, err := parseStats(strings.NewReader(scrape))
	require.Nil(t, err)

	assert.Equal(t, 3.0, stats["gotweetfs_publish_total_success"])
	assert.Equal(t, 1.0, stats["gotweetfs_publish_total_failure"])
	assert.Equal(t, 2.0, stats["gotweetfs_fuse_open_handlers"])
	assert.Equal(t, 4.0, stats["gotweetfs_publish_durations_histogram_seconds_total"])
	assert.Equal(t, 1.5, stats["gotweetfs_publish_durations_histogram_seconds_sum"])
}

func TestParseStatsBadInput(t *testing.T) {
	_, err := parseStats(strings.NewReader("gotweetfs_x{ 1\n"))
	assert.NotNil(t, err)
}

func TestReadStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != types.MetricsPath {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(scrape))
	}))
	defer srv.Close()

	stats, err := readStats(srv.Client(), scrapeURL(srv.URL))
	require.Nil(t, err)
	assert.Equal(t, 3.0, stats["gotweetfs_publish_total_success"])

	_, err = readStats(srv.Client(), srv.URL+"/nope")
	assert.NotNil(t, err)
}

func TestScrapeURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:8899/metrics", scrapeURL("127.0.0.1:8899"))
	assert.Equal(t, "https://host/metrics", scrapeURL("https://host"))
}

func TestStatsSchema(t *testing.T) {
	w := &statsWatcher{interval: 1}
	w.buildSchema("ufpg")
	require.Len(t, w.sections, 4)
	assert.Equal(t, "publish", w.sections[2].name)

	w.formatHeader()
	assert.Contains(t, w.header, "publish")
}

func TestStatsRow(t *testing.T) {
	w := &statsWatcher{interval: 2}
	w.sections = []*section{{name: "publish", items: []*item{
		{"ok", "ok_total", metricCount | metricCounter},
		{"req", "req", metricTime | metricHist},
		{"infl", "infl", metricGauge},
	}}}

	prev := map[string]float64{"ok_total": 10, "req_total": 4, "req_sum": 1}
	cur := map[string]float64{"ok_total": 14, "req_total": 8, "req_sum": 3, "infl": 3}

	fields := strings.Fields(w.row(prev, cur, false))
	// ok rate, req rate, req latency in ms, inflight
	assert.Equal(t, []string{"2", "2", "500", "3"}, fields)

	fields = strings.Fields(w.row(prev, cur, true))
	assert.Equal(t, []string{"4", "4", "500", "3"}, fields)
}

func TestFormatAmount(t *testing.T) {
	w := &statsWatcher{}
	assert.Equal(t, "       0 ", w.formatAmount(0, false, true))
	assert.Equal(t, "     512B", w.formatAmount(512, false, true))
	assert.Equal(t, "      20K", w.formatAmount(20*1024, false, true))
	assert.Equal(t, "      30M", w.formatAmount(30<<20, false, false))
}

func TestCenter(t *testing.T) {
	assert.Equal(t, "---fs--", center("fs", 7, "-"))
	assert.Equal(t, "publ", center("publish", 4, " "))
}
