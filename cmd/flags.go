package main

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lambertxiao/go-tweetfs/pkg/config"
	"github.com/lambertxiao/go-tweetfs/pkg/logg"
	"github.com/lambertxiao/go-tweetfs/pkg/types"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/urfave/cli"
)

const (
	// flags
	C_HELP              = "help, h"
	C_F                 = "f"
	C_PARALLEL          = "parallel"
	C_LEVEL             = "level"
	C_DEBUG             = "debug"
	C_CONF              = "conf"
	C_ENV_FILE          = "env_file"
	C_UID               = "uid"
	C_GID               = "gid"
	C_MAX_SIZE          = "max_size"
	C_ALLOW_OTHER       = "allow_other"
	C_LOG_DIR           = "log_dir"
	C_LOG_MAX_AGE       = "log_max_age"
	C_LOG_ROTATION_TIME = "log_rotation_time"
	C_O                 = "o"
	C_ATTRTIMEOUT       = "attr_timeout"
	C_PUBLISH_TIMEOUT   = "publish_timeout"
	C_DRAIN_TIMEOUT     = "drain_timeout"
	C_API_ENDPOINT      = "api_endpoint"
	C_METRICS_ADDR      = "metrics_addr"
	C_INTERVAL          = "interval"
)

var allFlags map[string]string

func init() {
	cli.VersionPrinter = VersionPointer
	allFlags = make(map[string]string)
	for _, v := range []string{C_HELP, C_F} {
		allFlags[v] = "misc"
	}

	FillPlatformFlags(allFlags)

	for _, v := range []string{
		C_PARALLEL, C_LEVEL, C_DEBUG, C_CONF, C_ENV_FILE,
		C_UID, C_GID, C_MAX_SIZE,
		C_LOG_DIR, C_LOG_MAX_AGE, C_LOG_ROTATION_TIME,
		C_PUBLISH_TIMEOUT, C_DRAIN_TIMEOUT, C_API_ENDPOINT, C_METRICS_ADDR,
	} {
		allFlags[v] = "os"
	}
}

func VersionPointer(c *cli.Context) {
	fmt.Printf("%v", c.App.Version)
}

func NewApp() *cli.App {
	version := "GO_TWEETFS Version: " + types.GO_TWEETFS_VERSION + "\n" +
		"  Commit ID: " + types.COMMIT_ID + "\n" +
		"  Build: " + types.BUILD_TIME + "\n" +
		"  Go Version: " + types.GO_VERSION + "\n"

	app := &cli.App{
		Name:     "go-tweetfs",
		HideHelp: false,
		Version:  version,
		Usage:    "go-tweetfs [global options] <mountpoint>",
		Writer:   os.Stderr,
		Commands: []cli.Command{
			{
				Name:  "stats",
				Usage: "show stats of a running mount",
				Flags: []cli.Flag{
					cli.StringFlag{
						Name:  C_METRICS_ADDR,
						Usage: "metrics address of the mount",
						Value: types.DEFAULT_METRICS_ADDR,
					},
					cli.UintFlag{
						Name:  C_INTERVAL,
						Usage: "refresh interval in seconds",
						Value: 1,
					},
				},
				Action: func(c *cli.Context) error {
					return ShowStats(c.String(C_METRICS_ADDR), c.Uint(C_INTERVAL))
				},
			},
			{
				Name:      "post",
				Usage:     "publish the arguments, or stdin, once",
				ArgsUsage: "[text...]",
				Flags: []cli.Flag{
					cli.StringFlag{
						Name:  C_ENV_FILE,
						Usage: "dotenv file holding the credentials",
						Value: types.DEFAULT_ENV_FILE,
					},
					cli.StringFlag{
						Name:  C_API_ENDPOINT,
						Usage: "status create endpoint",
						Value: types.DEFAULT_API_ENDPOINT,
					},
					cli.DurationFlag{
						Name:  C_PUBLISH_TIMEOUT,
						Usage: "timeout of the publish request",
						Value: types.DEFAULT_PUBLISH_TIMEOUT,
					},
				},
				Action: func(c *cli.Context) error {
					return Post(c)
				},
			},
		},
		Flags: []cli.Flag{
			cli.BoolFlag{
				Name:  C_HELP,
				Usage: "show help",
			},
			cli.BoolFlag{
				Name:  C_F,
				Usage: "foreground",
			},
			cli.IntFlag{
				Name:  C_PARALLEL,
				Value: types.DEFAULT_PARALLEL,
				Usage: "Number of concurrent publish requests",
			},
			cli.BoolFlag{
				Name:  C_DEBUG,
				Usage: "Set debug level for fuse",
			},
			cli.StringFlag{
				Name:  C_LEVEL,
				Usage: "Set log level: error/warn/info/debug/trace",
				Value: types.DEFAULT_LEVEL,
			},
			cli.StringFlag{
				Name:  C_LOG_DIR,
				Usage: "Set log dir",
				Value: "",
			},
			cli.DurationFlag{
				Name:  C_LOG_MAX_AGE,
				Usage: "Set log max age",
				Value: types.DEFAULT_LOG_MAX_AGE,
			},
			cli.DurationFlag{
				Name:  C_LOG_ROTATION_TIME,
				Usage: "Set log rotation time",
				Value: types.DEFAULT_LOG_ROTATION_TIME,
			},
			cli.StringFlag{
				Name:  C_CONF,
				Usage: "specify config file",
				Value: types.DEFAULT_CONF_FILE,
			},
			cli.StringFlag{
				Name:  C_ENV_FILE,
				Usage: "dotenv file holding the credentials",
				Value: types.DEFAULT_ENV_FILE,
			},
			cli.IntFlag{
				Name:  C_UID,
				Usage: "Specify owner uid of the file",
				Value: os.Getuid(),
			},
			cli.IntFlag{
				Name:  C_GID,
				Usage: "Specify owner gid of the file",
				Value: os.Getgid(),
			},
			cli.StringFlag{
				Name:  C_MAX_SIZE,
				Usage: "Max bytes per handle, 0 is unlimited. e.g.: 280/4k/1m",
				Value: types.DEFAULT_MAX_SIZE,
			},
			cli.DurationFlag{
				Name:  C_PUBLISH_TIMEOUT,
				Usage: "timeout of one publish request",
				Value: types.DEFAULT_PUBLISH_TIMEOUT,
			},
			cli.DurationFlag{
				Name:  C_DRAIN_TIMEOUT,
				Usage: "how long unmount waits for running publishes",
				Value: types.DEFAULT_DRAIN_TIMEOUT,
			},
			cli.StringFlag{
				Name:  C_API_ENDPOINT,
				Usage: "status create endpoint",
				Value: types.DEFAULT_API_ENDPOINT,
			},
			cli.StringFlag{
				Name:  C_METRICS_ADDR,
				Usage: "listen address of metrics and pprof, empty disables it",
				Value: types.DEFAULT_METRICS_ADDR,
			},
		},
	}

	AppendAppFlags(app)
	return app
}

func PopulateConfig(c *cli.Context) (*config.FSConfig, error) {
	cfg := &config.FSConfig{
		// common
		Foreground: c.Bool(C_F),
		Conf_file:  c.String(C_CONF),
		Env_file:   c.String(C_ENV_FILE),

		// fuse
		DebugFuse: c.Bool(C_DEBUG),

		// os
		Uid:             uint32(c.Int(C_UID)),
		Gid:             uint32(c.Int(C_GID)),
		Parallel:        c.Int(C_PARALLEL),
		Publish_timeout: c.Duration(C_PUBLISH_TIMEOUT),
		Drain_timeout:   c.Duration(C_DRAIN_TIMEOUT),
		Api_endpoint:    c.String(C_API_ENDPOINT),
		Metrics_addr:    c.String(C_METRICS_ADDR),

		LogDir:          c.String(C_LOG_DIR),
		LogMaxAge:       c.Duration(C_LOG_MAX_AGE),
		LogRotationTime: c.Duration(C_LOG_ROTATION_TIME),
	}
	FillConfig(c, cfg)

	fileConf, err := parseConfig(cfg)
	if err != nil {
		return cfg, err
	}
	cfg.MountPoint = c.Args()[0]

	if cfg.Parallel <= 0 {
		cfg.Parallel = types.DEFAULT_PARALLEL
	}

	cfg.FuseOptions = make(map[string]string)
	for _, s := range c.StringSlice(C_O) {
		parseFuseOption(cfg.FuseOptions, s)
	}

	if _, exist := cfg.FuseOptions[C_ALLOW_OTHER]; exist || fileConf.Allow_other {
		cfg.Allow_other = true
		if !exist {
			cfg.FuseOptions[C_ALLOW_OTHER] = ""
		}
	}

	maxSize := c.String(C_MAX_SIZE)
	if maxSize == types.DEFAULT_MAX_SIZE && fileConf.Max_size != "" {
		maxSize = strings.ToLower(fileConf.Max_size)
	}
	cfg.Max_size, err = ParseStringToSize(maxSize)
	if err != nil {
		return cfg, err
	}

	levelStr := c.String(C_LEVEL)
	if levelStr == types.DEFAULT_LEVEL && fileConf.Log_level != "" {
		levelStr = fileConf.Log_level
	}
	cfg.Log_level = logg.ParseLevel(levelStr)
	logg.SetLevel(cfg.Log_level)

	return cfg, nil
}

// parseConfig merges the yaml file into conf. A missing file is only an error
// when --conf was given explicitly.
func parseConfig(conf *config.FSConfig) (*config.FileConfig, error) {
	var fileConfig config.FileConfig

	y, err := os.ReadFile(conf.Conf_file)
	if err != nil {
		if os.IsNotExist(err) && conf.Conf_file == types.DEFAULT_CONF_FILE {
			return &fileConfig, nil
		}
		return nil, errors.Wrapf(err, "read config %s", conf.Conf_file)
	}

	if err := yaml.Unmarshal(y, &fileConfig); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", conf.Conf_file)
	}

	if err := mergeConfig(conf, &fileConfig); err != nil {
		return nil, err
	}
	return &fileConfig, nil
}

func mergeConfig(conf *config.FSConfig, fc *config.FileConfig) error {
	// string
	if conf.LogDir == "" && fc.LogDir != "" {
		conf.LogDir = fc.LogDir
	}
	if conf.Env_file == types.DEFAULT_ENV_FILE && fc.Env_file != "" {
		conf.Env_file = fc.Env_file
	}
	if conf.Api_endpoint == types.DEFAULT_API_ENDPOINT && fc.Api_endpoint != "" {
		conf.Api_endpoint = fc.Api_endpoint
	}
	if conf.Metrics_addr == types.DEFAULT_METRICS_ADDR && fc.Metrics_addr != "" {
		conf.Metrics_addr = fc.Metrics_addr
	}

	// bool
	if conf.DebugFuse || fc.DebugFuse {
		conf.DebugFuse = true
	}

	// int
	if conf.Uid == uint32(os.Getuid()) && fc.Uid != 0 {
		conf.Uid = fc.Uid
	}
	if conf.Gid == uint32(os.Getgid()) && fc.Gid != 0 {
		conf.Gid = fc.Gid
	}
	if conf.Parallel == types.DEFAULT_PARALLEL && fc.Parallel != 0 {
		conf.Parallel = fc.Parallel
	}

	// duration
	for _, d := range []struct {
		name   string
		target *time.Duration
		def    time.Duration
		value  string
	}{
		{C_ATTRTIMEOUT, &conf.Attr_ttl, types.DEFAULT_ATTR_TTL, fc.Attr_ttl},
		{C_PUBLISH_TIMEOUT, &conf.Publish_timeout, types.DEFAULT_PUBLISH_TIMEOUT, fc.Publish_timeout},
		{C_DRAIN_TIMEOUT, &conf.Drain_timeout, types.DEFAULT_DRAIN_TIMEOUT, fc.Drain_timeout},
		{C_LOG_MAX_AGE, &conf.LogMaxAge, types.DEFAULT_LOG_MAX_AGE, fc.LogMaxAge},
		{C_LOG_ROTATION_TIME, &conf.LogRotationTime, types.DEFAULT_LOG_ROTATION_TIME, fc.LogRotationTime},
	} {
		if *d.target != d.def || d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid value %s for %s :parse error", d.value, d.name)
		}
		*d.target = v
	}

	conf.Mirror = config.MirrorConf{
		Endpoint:  fc.Mirror.Endpoint,
		AccessKey: fc.Mirror.Access_key,
		SecretKey: fc.Mirror.Secret_key,
		Bucket:    fc.Mirror.Bucket,
		Prefix:    fc.Mirror.Prefix,
		Region:    fc.Mirror.Region,
		Secure:    fc.Mirror.Secure,
	}
	if conf.Mirror.Enabled() && (conf.Mirror.AccessKey == "" || conf.Mirror.SecretKey == "") {
		return errors.New("parse config error, mirror access_key and secret_key are required")
	}
	return nil
}

func parseFuseOption(m map[string]string, s string) {
	for _, v := range strings.Split(s, ",") {
		var key string
		var value string
		if equal := strings.IndexByte(v, '='); equal != -1 {
			key = v[:equal]
			value = v[equal+1:]
		} else {
			key = v
		}
		m[key] = value
	}
}

func ParseStringToSize(str string) (uint64, error) {
	size_reg, err := regexp.Compile("([0-9][0-9]*)([mk]*)")
	if err != nil {
		return 0, err
	}
	ret := size_reg.FindAllStringSubmatch(str, -1)
	if len(ret) != 1 || len(ret[0]) != 3 || len(ret[0][1])+len(ret[0][2]) != len(str) {
		return 0, fmt.Errorf("parse string to size error %s", str)
	}
	size, err := strconv.ParseUint(ret[0][1], 10, 64)
	if err != nil {
		return 0, err
	}
	var mult uint64 = 1
	unit := ret[0][2]
	switch unit {
	case "k":
		mult = 1024
	case "m":
		mult = 1 << 20
	case "":
	default:
		return 0, fmt.Errorf("invalid  size unit error %s", unit)
	}
	if size > math.MaxUint64/mult {
		return 0, fmt.Errorf("size %s overflows", str)
	}
	return size * mult, nil
}
