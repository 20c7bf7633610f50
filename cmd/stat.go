package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/lambertxiao/go-tweetfs/pkg/fs"
	"github.com/lambertxiao/go-tweetfs/pkg/types"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

type color int

const (
	BLACK color = 30 + iota
	RED
	GREEN
	YELLOW
	BLUE
	MAGENTA
	CYAN
	WHITE
)

const (
	RESET_SEQ     = "\033[0m"
	UNDERLINE_SEQ = "\033[4m"
)

const (
	metricByte = 1 << iota
	metricCount
	metricTime
	metricCPU
	metricGauge
	metricCounter
	metricHist
)

// column width, including the trailing space
const cellWidth = 10

type item struct {
	nick string
	name string
	typ  uint8
}

type section struct {
	name  string
	items []*item
}

type statsWatcher struct {
	colorful bool
	interval uint
	header   string
	sections []*section
}

// paint wraps msg in ANSI colour codes. dim rows are written with the normal
// intensity so they can be told apart from the per-interval rows.
func (w *statsWatcher) paint(msg string, c color, dim, underline bool) string {
	if !w.colorful || strings.TrimSpace(msg) == "" {
		return msg
	}
	intensity := 1
	if dim {
		intensity = 0
	}
	prefix := ""
	if underline {
		prefix = UNDERLINE_SEQ
	}
	return fmt.Sprintf("%s\033[%d;%dm%s%s", prefix, intensity, c, msg, RESET_SEQ)
}

func (w *statsWatcher) buildSchema(schema string) {
	for _, r := range schema {
		var s section
		switch r {
		case 'u':
			s.name = "process"
			s.items = append(s.items, &item{"cpu", "gotweetfs_cpu_usage", metricCPU | metricCounter})
			s.items = append(s.items, &item{"mem", "gotweetfs_memory", metricByte | metricGauge})
		case 'f':
			s.name = "fs"
			s.items = append(s.items, &item{"open_ops", "gotweetfs_fuse_ops_durations_histogram_seconds_OPEN", metricTime | metricHist})
			s.items = append(s.items, &item{"write_ops", "gotweetfs_fuse_ops_durations_histogram_seconds_WRITE", metricTime | metricHist})
			s.items = append(s.items, &item{"write", "gotweetfs_fuse_written_size_bytes_sum", metricByte | metricCounter})
			s.items = append(s.items, &item{"handles", "gotweetfs_fuse_open_handlers", metricGauge})
			s.items = append(s.items, &item{"denied", "gotweetfs_fuse_open_denied_total", metricCount | metricCounter})
		case 'p':
			s.name = "publish"
			s.items = append(s.items, &item{"ok", "gotweetfs_publish_total_success", metricCount | metricCounter})
			s.items = append(s.items, &item{"failed", "gotweetfs_publish_total_failure", metricCount | metricCounter})
			s.items = append(s.items, &item{"req", "gotweetfs_publish_durations_histogram_seconds", metricTime | metricHist})
			s.items = append(s.items, &item{"infl", "gotweetfs_publish_inflight_cnt", metricGauge})
			s.items = append(s.items, &item{"mirror", "gotweetfs_mirror_total_success", metricCount | metricCounter})
		case 'g':
			s.name = "go"
			s.items = append(s.items, &item{"alloc", "gotweetfs_go_memstats_alloc_bytes", metricByte | metricGauge})
			s.items = append(s.items, &item{"sys", "gotweetfs_go_memstats_sys_bytes", metricByte | metricGauge})
		default:
			fmt.Printf("Warning: no item defined for %c\n", r)
			continue
		}
		w.sections = append(w.sections, &s)
	}
	if len(w.sections) == 0 {
		log.Fatalln("no section to watch, please check the schema string")
	}
}

// center pads name with fill on both sides, truncating it if needed.
func center(name string, width int, fill string) string {
	if len(name) > width {
		return name[:width]
	}
	pad := width - len(name)
	left := (pad + 1) / 2
	return strings.Repeat(fill, left) + name + strings.Repeat(fill, pad-left)
}

func (w *statsWatcher) formatHeader() {
	titles := make([]string, 0, len(w.sections))
	columns := make([]string, 0, len(w.sections))
	for _, s := range w.sections {
		cols := make([]string, 0, len(s.items))
		for _, it := range s.items {
			cols = append(cols, w.paint(center(it.nick, cellWidth-1, " "), BLUE, false, true))
			if it.typ&metricHist != 0 {
				cols = append(cols, w.paint(center("lat_ms", cellWidth-1, " "), BLUE, false, true))
			}
		}
		titles = append(titles, w.paint(center(s.name, cellWidth*len(cols)-1, "-"), BLUE, false, false))
		columns = append(columns, strings.Join(cols, " "))
	}

	sep := w.paint("|", BLUE, false, false)
	w.header = strings.Join(titles, sep) + "\n" + strings.Join(columns, sep)
}

var amountUnits = []struct {
	suffix string
	c      color
}{
	{"", RED}, {"K", YELLOW}, {"M", GREEN}, {"G", BLUE}, {"T", MAGENTA}, {"P", CYAN},
}

// formatAmount scales v by 1024 until it fits in four digits.
func (w *statsWatcher) formatAmount(v float64, dim, isByte bool) string {
	if v <= 0 {
		return w.paint("       0 ", BLACK, false, false)
	}
	n := uint64(v)
	i := 0
	for ; n >= 10000 && i < len(amountUnits)-1; i++ {
		n >>= 10
	}
	suffix := amountUnits[i].suffix
	if suffix == "" {
		suffix = " "
		if isByte {
			suffix = "B"
		}
	}
	return w.paint(fmt.Sprintf("%8d", n), amountUnits[i].c, dim, false) +
		w.paint(suffix, BLACK, false, false)
}

func (w *statsWatcher) formatLatency(ms float64, dim bool) string {
	switch {
	case ms <= 0:
		return w.paint("       0 ", BLACK, false, false)
	case ms < 10:
		return w.paint(fmt.Sprintf("%8.2f ", ms), GREEN, dim, false)
	case ms < 100:
		return w.paint(fmt.Sprintf("%8.1f ", ms), YELLOW, dim, false)
	case ms < 10000:
		return w.paint(fmt.Sprintf("%8.f ", ms), RED, dim, false)
	}
	return w.paint(fmt.Sprintf("%8.e", ms), MAGENTA, dim, false)
}

func (w *statsWatcher) formatPercent(ratio float64, dim bool) string {
	pct := ratio * 100
	var c color
	switch {
	case pct <= 0:
		pct, c = 0, WHITE
	case pct < 30:
		c = GREEN
	case pct < 100:
		c = YELLOW
	default:
		c = RED
	}
	return w.paint(fmt.Sprintf("%8.1f", pct), c, dim, false) + w.paint("%", BLACK, false, false)
}

// row renders the change between two scrapes. Rates are per second unless
// partial is set, in which case the raw delta since the last full row is shown.
func (w *statsWatcher) row(prev, cur map[string]float64, partial bool) string {
	per := float64(w.interval)
	if partial {
		per = 1
	}

	cells := make([]string, 0, len(w.sections))
	for _, s := range w.sections {
		vals := make([]string, 0, len(s.items))
		for _, it := range s.items {
			switch {
			case it.typ&metricGauge != 0:
				vals = append(vals, w.formatAmount(cur[it.name], partial, it.typ&metricByte != 0))
			case it.typ&metricCounter != 0:
				delta := (cur[it.name] - prev[it.name]) / per
				if it.typ&metricCPU != 0 {
					vals = append(vals, w.formatPercent(delta, partial))
				} else {
					vals = append(vals, w.formatAmount(delta, partial, it.typ&metricByte != 0))
				}
			case it.typ&metricHist != 0:
				count := cur[it.name+"_total"] - prev[it.name+"_total"]
				var avgMs float64
				if count > 0 {
					avgMs = (cur[it.name+"_sum"] - prev[it.name+"_sum"]) * 1000 / count
				}
				vals = append(vals, w.formatAmount(count/per, partial, false), w.formatLatency(avgMs, partial))
			}
		}
		cells = append(cells, strings.Join(vals, " "))
	}
	return strings.Join(cells, w.paint("|", BLUE, false, false))
}

func scrapeURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr + types.MetricsPath
	}
	return "http://" + addr + types.MetricsPath
}

func readStats(client *http.Client, url string) (map[string]float64, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, errors.Wrapf(err, "scrape %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("scrape %s: %s", url, resp.Status)
	}
	return parseStats(resp.Body)
}

func parseStats(r io.Reader) (map[string]float64, error) {
	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return nil, errors.Wrap(err, "parse metrics")
	}

	mfs := make([]*dto.MetricFamily, 0, len(families))
	for _, mf := range families {
		mfs = append(mfs, mf)
	}

	stats := make(map[string]float64)
	for _, line := range strings.Split(string(fs.FlattenMetrics(mfs)), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			log.Printf("parse %s: %s\n", fields[1], err)
			continue
		}
		stats[fields[0]] = v
	}
	return stats, nil
}

// ShowStats prints one full row every interval seconds. On a terminal the
// row in progress is refreshed in place every second.
func ShowStats(addr string, interval uint) error {
	if interval == 0 {
		interval = 1
	}
	url := scrapeURL(addr)
	client := &http.Client{Timeout: 5 * time.Second}

	w := &statsWatcher{
		colorful: SupportANSIColor(os.Stdout.Fd()),
		interval: interval,
	}
	w.buildSchema("ufpg")
	w.formatHeader()

	current, err := readStats(client, url)
	if err != nil {
		return err
	}
	start := current

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for tick := uint(0); ; tick++ {
		if tick%(w.interval*30) == 0 {
			fmt.Println(w.header)
		}
		switch {
		case tick%w.interval == 0:
			fmt.Println(w.row(start, current, false))
			start = current
		case w.colorful:
			fmt.Printf("%s\r", w.row(start, current, true))
		}

		<-ticker.C
		current, err = readStats(client, url)
		if err != nil {
			return err
		}
	}
}

func SupportANSIColor(fd uintptr) bool {
	return isatty.IsTerminal(fd) && runtime.GOOS != "windows"
}
