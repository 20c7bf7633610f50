package types

import (
	"time"
)

var (
	GO_TWEETFS_VERSION string
	GO_VERSION         string
	COMMIT_ID          string
	BUILD_TIME         string
)

const (
	PANIC_LOG_PREFIX = "go-tweetfs-"
	PANIC_LOG_SUFFIX = "-stderr.log"

	// default value
	DEFAULT_PARALLEL          = 4
	DEFAULT_ATTR_TTL          = 365 * 24 * time.Hour
	DEFAULT_PUBLISH_TIMEOUT   = 30 * time.Second
	DEFAULT_DRAIN_TIMEOUT     = 60 * time.Second
	DEFAULT_LOG_MAX_AGE       = 72 * time.Hour
	DEFAULT_LOG_ROTATION_TIME = 1 * time.Hour
	DEFAULT_LEVEL             = "info"
	DEFAULT_MAX_SIZE          = "0"
	DEFAULT_METRICS_ADDR      = "127.0.0.1:8899"
	DEFAULT_CONF_FILE         = "/etc/go-tweetfs/go-tweetfs.yaml"
	DEFAULT_ENV_FILE          = ".env"
	DEFAULT_API_ENDPOINT      = "https://api.twitter.com/2/tweets"

	MetricsPath = "/metrics"
)
