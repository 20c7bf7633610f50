package config

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type MirrorConf struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Region    string
	Secure    bool
}

func (m MirrorConf) Enabled() bool {
	return m.Endpoint != "" && m.Bucket != ""
}

type FSConfig struct {
	MountPoint string
	Foreground bool
	Conf_file  string
	Env_file   string

	// fuse
	Attr_ttl    time.Duration
	Allow_other bool
	DebugFuse   bool
	FuseOptions map[string]string

	// os
	Uid      uint32
	Gid      uint32
	Max_size uint64

	// publish
	Parallel        int
	Publish_timeout time.Duration
	Drain_timeout   time.Duration
	Api_endpoint    string
	Mirror          MirrorConf

	Metrics_addr string

	Log_level       logrus.Level
	LogDir          string
	LogMaxAge       time.Duration
	LogRotationTime time.Duration
}

var (
	fsConfig *FSConfig
	cfgLock  sync.RWMutex
)

func GetGConfig() *FSConfig {
	cfgLock.RLock()
	defer cfgLock.RUnlock()

	return fsConfig
}

func SetGConfig(cfg *FSConfig) {
	cfgLock.Lock()
	defer cfgLock.Unlock()

	fsConfig = cfg
}

// FileConfig is the optional yaml file given by --conf. Values only apply when
// the matching flag was left at its default.
type FileConfig struct {
	Attr_ttl        string       `yaml:"attr_timeout"`
	Allow_other     bool         `yaml:"allow_other"`
	DebugFuse       bool         `yaml:"debug"`
	Uid             uint32       `yaml:"uid"`
	Gid             uint32       `yaml:"gid"`
	Max_size        string       `yaml:"max_size"`
	Parallel        int          `yaml:"parallel"`
	Publish_timeout string       `yaml:"publish_timeout"`
	Drain_timeout   string       `yaml:"drain_timeout"`
	Api_endpoint    string       `yaml:"api_endpoint"`
	Metrics_addr    string       `yaml:"metrics_addr"`
	Env_file        string       `yaml:"env_file"`
	Log_level       string       `yaml:"level"`
	LogDir          string       `yaml:"log_dir"`
	LogMaxAge       string       `yaml:"log_max_age"`
	LogRotationTime string       `yaml:"log_rotation_time"`
	Mirror          MirrorConfig `yaml:"mirror"`
}

type MirrorConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Access_key string `yaml:"access_key"`
	Secret_key string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	Prefix     string `yaml:"prefix"`
	Region     string `yaml:"region"`
	Secure     bool   `yaml:"secure"`
}
