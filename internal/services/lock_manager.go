// internal/services/lock_manager.go
package services

import (
	"sync"
	"time"
)

// LockManager 统一的锁管理器，每个故事一把读写锁
type LockManager struct {
	storyLocks map[string]*LockInfo
	globalLock sync.Mutex
	lockTTL    time.Duration
	maxIdle    int

	stop     chan struct{}
	stopOnce sync.Once
}

// LockInfo 包装锁和相关信息
type LockInfo struct {
	Mutex    sync.RWMutex
	LastUsed time.Time
	refs     int // 正在持有或等待此锁的调用数，大于0时不会被清理
}

// NewLockManager 创建锁管理器
func NewLockManager() *LockManager {
	lm := &LockManager{
		storyLocks: make(map[string]*LockInfo),
		lockTTL:    30 * time.Minute,
		maxIdle:    200,
		stop:       make(chan struct{}),
	}
	go lm.cleanupLoop(5 * time.Minute)
	return lm
}

// Close 停止清理协程
func (lm *LockManager) Close() {
	lm.stopOnce.Do(func() { close(lm.stop) })
}

func (lm *LockManager) acquire(storyID string) *LockInfo {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	info, ok := lm.storyLocks[storyID]
	if !ok {
		info = &LockInfo{}
		lm.storyLocks[storyID] = info
	}
	info.refs++
	info.LastUsed = time.Now()
	return info
}

func (lm *LockManager) release(info *LockInfo) {
	lm.globalLock.Lock()
	info.refs--
	info.LastUsed = time.Now()
	lm.globalLock.Unlock()
}

// ExecuteWithStoryLock 在故事写锁保护下执行操作
func (lm *LockManager) ExecuteWithStoryLock(storyID string, fn func() error) error {
	info := lm.acquire(storyID)
	defer lm.release(info)

	info.Mutex.Lock()
	defer info.Mutex.Unlock()
	return fn()
}

// ExecuteWithStoryReadLock 在故事读锁保护下执行操作
func (lm *LockManager) ExecuteWithStoryReadLock(storyID string, fn func() error) error {
	info := lm.acquire(storyID)
	defer lm.release(info)

	info.Mutex.RLock()
	defer info.Mutex.RUnlock()
	return fn()
}

// Len returns the number of tracked locks.
func (lm *LockManager) Len() int {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	return len(lm.storyLocks)
}

func (lm *LockManager) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-lm.stop:
			return
		case <-ticker.C:
			lm.cleanupUnusedLocks(time.Now())
		}
	}
}

// 只有在锁数量过多时才清理长时间未使用且无人引用的锁
func (lm *LockManager) cleanupUnusedLocks(now time.Time) int {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	if len(lm.storyLocks) <= lm.maxIdle {
		return 0
	}
	removed := 0
	for id, info := range lm.storyLocks {
		if info.refs == 0 && now.Sub(info.LastUsed) > lm.lockTTL {
			delete(lm.storyLocks, id)
			removed++
		}
	}
	return removed
}
