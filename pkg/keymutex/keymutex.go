// Package keymutex 提供按键加锁的互斥量，不同键之间互不阻塞。
package keymutex

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex 按字符串键加锁；无人持有或等待的键会被回收
type KeyedMutex struct {
	locks *xsync.Map[string, *entry]
}

// New 创建 KeyedMutex
func New() *KeyedMutex {
	return &KeyedMutex{locks: xsync.NewMap[string, *entry]()}
}

// Lock 获取 key 对应的锁，返回解锁函数
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	e, _ := k.locks.Compute(key, func(old *entry, loaded bool) (*entry, xsync.ComputeOp) {
		if !loaded {
			old = &entry{}
		}
		old.refs++
		return old, xsync.UpdateOp
	})
	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			k.locks.Compute(key, func(old *entry, loaded bool) (*entry, xsync.ComputeOp) {
				if !loaded {
					return old, xsync.CancelOp
				}
				old.refs--
				if old.refs == 0 {
					return nil, xsync.DeleteOp
				}
				return old, xsync.UpdateOp
			})
		})
	}
}

// Len 当前被持有或等待中的键数量
func (k *KeyedMutex) Len() int {
	return k.locks.Size()
}
