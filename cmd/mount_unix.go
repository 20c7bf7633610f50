//go:build !windows
// +build !windows

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lambertxiao/go-tweetfs/pkg/config"
	"github.com/lambertxiao/go-tweetfs/pkg/fs"
	"github.com/lambertxiao/go-tweetfs/pkg/logg"
	"github.com/lambertxiao/go-tweetfs/pkg/types"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	gd "github.com/sevlyar/go-daemon"
	"github.com/sirupsen/logrus"
)

func mount(fsconfig *config.FSConfig) error {
	notify_process := func(pid int, si os.Signal) {
		p, err := os.FindProcess(pid)
		if err != nil {
			logg.Dlog.Errorf("notify_process %v, %v", pid, err)
			return
		}
		defer p.Release()
		err = p.Signal(si)
		if err != nil {
			logg.Dlog.Errorf("notify_process %v, %v", pid, err)
			return
		}
	}

	// fail before forking so the user sees the reason on the terminal
	if err := fs.CheckMountPoint(fsconfig.MountPoint); err != nil {
		fmt.Println(err)
		return err
	}
	creds, err := config.LoadCredentials(fsconfig.Env_file)
	if err != nil {
		fmt.Println(err)
		return err
	}

	if !fsconfig.Foreground {
		ctx := new(gd.Context)
		d, err := ctx.Reborn()
		if err != nil {
			fmt.Println("error to fork child process", err)
			return err
		}

		var waitfor sync.WaitGroup
		waitfor_child := func() {
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
			waitfor.Add(1)
			go func() {
				waitfor_sig = <-sigs
				waitfor.Done()
			}()
		}
		waitfor_child()

		if d != nil {
			// parent process
			waitfor.Wait()

			if waitfor_sig == syscall.SIGUSR1 {
				return nil
			}
			fmt.Println("Mount Error")
			return types.EINVAL
		}

		// child process
		notify_process(os.Getpid(), syscall.SIGUSR1)
		waitfor.Wait()
		defer ctx.Release()
	}

	mfs, registry, err := Mount(fsconfig, creds)
	if err != nil {
		if !fsconfig.Foreground {
			notify_process(os.Getppid(), syscall.SIGUSR2)
		}
		logg.Dlog.Fatalf("mount error, %v", err)
		return err
	}

	logg.Dlog.Infof("succ mount %s", fsconfig.MountPoint)
	if !fsconfig.Foreground {
		notify_process(os.Getppid(), syscall.SIGUSR1)
	}
	RegisterSignalHandler()

	if fsconfig.Metrics_addr != "" {
		go serveMetrics(fsconfig.Metrics_addr, registry)
	}

	err = mfs.Join(context.Background())
	if err != nil {
		logg.Dlog.Fatalf("umount error, %v", err)
	}

	logg.Dlog.Println("succ exit")
	return err
}

// serveMetrics exposes the registry next to the pprof handlers registered on
// http.DefaultServeMux.
func serveMetrics(addr string, registry *prometheus.Registry) {
	http.Handle(types.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logg.Dlog.Infof("serve metrics on %s%s", addr, types.MetricsPath)
	if err := http.ListenAndServe(addr, nil); err != nil {
		logg.Dlog.Errorf("metrics server %s: %v", addr, err)
	}
}

func Mount(conf *config.FSConfig, creds *config.Credentials) (*fuse.MountedFileSystem, *prometheus.Registry, error) {
	logg.Dlog.Infof("GO_TWEETFS_VERSION:%s, COMMIT_ID:%s, GO_VERSION:%s, BUILD_TIME:%s",
		types.GO_TWEETFS_VERSION, types.COMMIT_ID, types.GO_VERSION, types.BUILD_TIME)
	logg.Dlog.Infof("startup params: mp:%s parallel:%d max_size:%d attr_ttl:%v endpoint:%s mirror:%v",
		conf.MountPoint, conf.Parallel, conf.Max_size, conf.Attr_ttl, conf.Api_endpoint, conf.Mirror.Enabled())

	if !conf.Foreground {
		logDir := conf.LogDir
		if logDir == "" {
			homedir := os.Getenv("HOME")
			if homedir == "" {
				log.Panicf("HOME environment variable is empty")
			}
			logDir = homedir + "/.go-tweetfs"
		}

		err := fs.RedirectStderr(logDir, types.PANIC_LOG_PREFIX, types.PANIC_LOG_SUFFIX)
		if err != nil {
			return nil, nil, err
		}
	}

	mountConf := &fuse.MountConfig{
		FSName:                    "go-tweetfs",
		Subtype:                   "tweetfs",
		DisableWritebackCaching:   true,
		ErrorLogger:               log.New(logg.Dfuseerrlog.WriterLevel(logrus.ErrorLevel), "", 0),
		Options:                   conf.FuseOptions,
		DisableDefaultPermissions: !conf.Allow_other,
	}

	if conf.DebugFuse {
		logg.Dfuselog.Level = logrus.DebugLevel
		mountConf.DebugLogger = log.New(logg.Dfuselog.WriterLevel(logrus.DebugLevel), "", 0)
	}

	registry, registerer := fs.InitMetricRegistry(conf.MountPoint)
	fs.RegistMetrics(registerer)

	fsx, err := fs.InitFS(conf, creds, registry, registerer)
	if err != nil {
		return nil, nil, err
	}

	server := fuseutil.NewFileSystemServer(&fs.FSRX{FSR: fsx})
	mfs, err := fuse.Mount(conf.MountPoint, server, mountConf)

	return mfs, registry, err
}

func tryUnmount() error {
	var err error
	for i := 0; i < 10; i++ {
		err = fuse.Unmount(config.GetGConfig().MountPoint)
		if err != nil {
			time.Sleep(time.Second)
		} else {
			return nil
		}
	}
	return err
}

func RegisterSignalHandler() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	go func() {
		s := <-sigs
		logg.Dlog.Infof("try to umount")
		err := tryUnmount()
		if err != nil {
			logg.Dlog.Errorf("umount error: %v, %v", err, s)
		} else {
			logg.Dlog.Infof("umount succ %v", s)
		}
	}()
}
