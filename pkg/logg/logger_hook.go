//go:build !windows
// +build !windows

package logg

import (
	"fmt"
	"log/syslog"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	lsys "github.com/sirupsen/logrus/hooks/syslog"
)

const (
	logSuffix = "%Y%m%d-%H.log"
	syslogTag = "go-tweetfs"
)

// InitLogHook sends logs to hourly rotated files under logDir, or to syslog
// when no directory is configured. It must run before InitLogger.
func InitLogHook(logDir string, logMaxAge, logRotationTime time.Duration) error {
	if logDir == "" {
		hook, err := lsys.NewSyslogHook("", "", syslog.LOG_DEBUG|syslog.LOG_DAEMON, syslogTag)
		if err != nil {
			return fmt.Errorf("create syslog hook: %w", err)
		}
		syslogHook = hook
		return nil
	}

	if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
		return fmt.Errorf("create log dir %s: %w", logDir, err)
	}

	var err error
	defaultLogHook, err = newRotatelogHook(filepath.Join(logDir, "go-tweetfs-"+logSuffix), logMaxAge, logRotationTime)
	if err != nil {
		return fmt.Errorf("create default log hook: %w", err)
	}

	fuseLogHook, err = newRotatelogHook(filepath.Join(logDir, "fuse-"+logSuffix), logMaxAge, logRotationTime)
	if err != nil {
		return fmt.Errorf("create fuse log hook: %w", err)
	}
	return nil
}

func newRotatelogHook(logPath string, maxAge, rotationTime time.Duration) (logrus.Hook, error) {
	writer, err := rotatelogs.New(
		logPath,
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(rotationTime),
	)
	if err != nil {
		return nil, err
	}

	writeMap := lfshook.WriterMap{}
	for _, level := range logrus.AllLevels {
		writeMap[level] = writer
	}

	return lfshook.NewHook(writeMap, &CommonLogFormatter{pid: os.Getpid()}), nil
}
