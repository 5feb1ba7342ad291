package cardio

import (
	"log"
	"sync/atomic"
	"time"
)

// ModeFlag is the lowest severity that reaches the log.
type ModeFlag uint32

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
)

var severityTags = [...]string{
	DebugMode:   "   DEBUG ",
	InfoMode:    "    INFO ",
	WarningMode: " WARNING ",
	ErrorMode:   "   ERROR ",
}

var threshold = uint32(InfoMode)

// SetLogMode drops any later message below the given severity.
func SetLogMode(m ModeFlag) {
	atomic.StoreUint32(&threshold, uint32(m))
}

func logf(m ModeFlag, format string, args ...interface{}) {
	if uint32(m) < atomic.LoadUint32(&threshold) {
		return
	}
	log.Printf(severityTags[m]+format, args...)
}

func Debugf(format string, args ...interface{}) { logf(DebugMode, format, args...) }
func Infof(format string, args ...interface{}) { logf(InfoMode, format, args...) }
func Warningf(format string, args ...interface{}) { logf(WarningMode, format, args...) }
func Errorf(format string, args ...interface{}) { logf(ErrorMode, format, args...) }

// TimeLog suffixes each message with the time elapsed since NewTimeLog, e.g.
//
//	timedLog := NewTimeLog()
//	...
//	timedLog.Infof("Loaded %d voxels", n)
type TimeLog struct {
	start time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{time.Now()}
}

func (t TimeLog) Debugf(format string, args ...interface{}) { t.logf(DebugMode, format, args...) }
func (t TimeLog) Infof(format string, args ...interface{}) { t.logf(InfoMode, format, args...) }

func (t TimeLog) logf(m ModeFlag, format string, args ...interface{}) {
	logf(m, format+": %s\n", append(args, time.Since(t.start))...)
}
