package httpserver

import (
	"sync"
	"sync/atomic"
)

// connectionLimits caps concurrent view subscriptions per instance and per
// client IP.
type connectionLimits struct {
	current atomic.Int64
	max     int64

	mu     sync.Mutex
	ips    map[string]int
	maxPer int
}

func newConnectionLimits(maxTotal, maxPerIP int) *connectionLimits {
	return &connectionLimits{
		max:    int64(maxTotal),
		ips:    make(map[string]int),
		maxPer: maxPerIP,
	}
}

// Acquire takes a slot for ip. Every successful Acquire needs one Release.
func (l *connectionLimits) Acquire(ip string) bool {
	if !l.acquireGlobal() {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ips[ip] >= l.maxPer {
		l.current.Add(-1)
		return false
	}
	l.ips[ip]++
	return true
}

func (l *connectionLimits) acquireGlobal() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *connectionLimits) Release(ip string) {
	l.mu.Lock()
	if count := l.ips[ip]; count > 0 {
		l.ips[ip] = count - 1
		if l.ips[ip] == 0 {
			delete(l.ips, ip)
		}
	}
	l.mu.Unlock()

	l.current.Add(-1)
}

// Current is the number of slots held.
func (l *connectionLimits) Current() int64 {
	return l.current.Load()
}

// Count is the number of slots held by ip.
func (l *connectionLimits) Count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ips[ip]
}
