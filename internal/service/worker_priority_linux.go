//go:build linux

package service

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// workerNice is the nice value given to image worker threads.
const workerNice = 10

// lowerThreadPriority pins the calling goroutine to its OS thread and raises
// the thread's nice value. The thread is never unlocked, so the runtime
// discards it when the goroutine exits instead of reusing it at low priority.
func lowerThreadPriority() error {
	runtime.LockOSThread()
	return unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), workerNice)
}
