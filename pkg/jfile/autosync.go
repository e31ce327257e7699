package jfile

import (
	"fmt"
	"time"

	"github.com/marmos91/jfile/internal/logger"
)

// autosync is the background flusher for lingering transactions. One per
// handle at most.
type autosync struct {
	interval time.Duration
	maxBytes int64

	kick chan struct{} // byte threshold crossed
	stop chan struct{}
	done chan struct{}
}

// AutosyncStart spawns a background task that calls Sync whenever
// maxInterval elapses or the lingering byte total exceeds maxBytes.
// Starting a second task on the same handle is an error.
func (f *File) AutosyncStart(maxInterval time.Duration, maxBytes int64) error {
	if f.flags&ReadOnly != 0 {
		return ErrReadOnly
	}
	if maxInterval <= 0 {
		return fmt.Errorf("non-positive autosync interval %v", maxInterval)
	}

	f.amu.Lock()
	defer f.amu.Unlock()
	if f.auto != nil {
		return ErrAutosyncRunning
	}

	a := &autosync{
		interval: maxInterval,
		maxBytes: maxBytes,
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	f.auto = a
	go f.autosyncLoop(a)

	logger.Debug("autosync started",
		logger.KeyFile, f.name, "interval", maxInterval, "max_bytes", maxBytes)
	return nil
}

// AutosyncStop signals the task and joins it before returning.
func (f *File) AutosyncStop() error {
	f.amu.Lock()
	a := f.auto
	f.auto = nil
	f.amu.Unlock()

	if a == nil {
		return ErrAutosyncNotRunning
	}
	close(a.stop)
	<-a.done
	logger.Debug("autosync stopped", logger.KeyFile, f.name)
	return nil
}

// autosyncLoop flushes and re-arms until stopped. The stop signal is
// only honoured between flush cycles.
func (f *File) autosyncLoop(a *autosync) {
	defer close(a.done)

	timer := time.NewTimer(a.interval)
	defer timer.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-timer.C:
		case <-a.kick:
			timer.Stop()
		}

		if err := f.Sync(); err != nil {
			logger.Warn("autosync flush failed",
				logger.KeyFile, f.name, logger.KeyError, err)
		}
		timer.Reset(a.interval)
	}
}

// kickAutosync nudges the task when the lingering byte total crosses the
// configured threshold. Non-blocking; a pending nudge is enough.
func (f *File) kickAutosync(pendingBytes int64) {
	f.amu.Lock()
	a := f.auto
	f.amu.Unlock()
	if a == nil || a.maxBytes <= 0 || pendingBytes < a.maxBytes {
		return
	}
	select {
	case a.kick <- struct{}{}:
	default:
	}
}
