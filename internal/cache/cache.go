// Package cache 提供带后台刷新和可选文件持久化的键值缓存，多个进程可以通过文件锁共享同一个缓存文件。
package cache

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"
)

// Value 是可以放入缓存的值
type Value interface {
	// ShouldRefresh 值仍然可用，但需要在后台重新获取
	ShouldRefresh() bool
	// IsValid 值是否仍然可用
	IsValid() bool
}

type Result uint8

const (
	FromCache Result = iota
	FromCacheAndRefreshAsync
	FromFallback
	FromInvalidCache
	NoResult
)

type entry[V Value] struct {
	value     V
	createdAt time.Time
}

type persistedEntry[V Value] struct {
	Key       string    `json:"key"`
	Value     V         `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

type persistence struct {
	path        string
	interval    time.Duration
	lastPersist time.Time
	handleError func(error)
}

type Cache[V Value] struct {
	mu           sync.Mutex
	entries      map[string]entry[V]
	compactEvery time.Duration
	lastCompact  time.Time
	persistence  *persistence
	group        singleflight.Group
	flushing     atomic.Bool
}

// New 创建只保存在内存中的缓存，compactInterval 为清理失效值的最小间隔
func New[V Value](compactInterval time.Duration) *Cache[V] {
	return &Cache[V]{
		entries:      make(map[string]entry[V]),
		compactEvery: compactInterval,
		lastCompact:  time.Now(),
	}
}

// NewPersistent 创建会定期与 path 合并的缓存，创建时加载文件中仍然有效的值
func NewPersistent[V Value](path string, compactInterval, persistInterval time.Duration, handleError func(error)) (*Cache[V], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	unlock, err := lockFile(path, false, handleError)
	if err != nil {
		return nil, err
	}
	defer unlock()

	file, closeFile, err := openFile(path, handleError)
	if err != nil {
		return nil, err
	}
	defer closeFile()

	entries, err := load[V](file)
	if err != nil {
		return nil, err
	}

	c := New[V](compactInterval)
	c.entries = entries
	c.persistence = &persistence{
		path:        path,
		interval:    persistInterval,
		lastPersist: time.Now(),
		handleError: handleError,
	}
	return c, nil
}

// Get 返回 key 对应的值，不存在或已失效时调用 fallback 获取。
// 同一个 key 的并发 fallback 只会执行一次。fallback 失败时仍会返回失效的旧值（如果有）。
func (c *Cache[V]) Get(key string, fallback func() (V, error)) (V, Result) {
	c.mu.Lock()
	cached, ok := c.entries[key]
	c.mu.Unlock()

	defer func() {
		go c.flush()
	}()

	if ok && cached.value.IsValid() {
		if cached.value.ShouldRefresh() {
			c.refreshAsync(key, fallback)
			return cached.value, FromCacheAndRefreshAsync
		}
		return cached.value, FromCache
	}

	value, err := c.fetch(key, fallback)
	if err != nil {
		if ok {
			return cached.value, FromInvalidCache
		}
		var zero V
		return zero, NoResult
	}
	c.set(key, value, false)
	return value, FromFallback
}

func (c *Cache[V]) fetch(key string, fallback func() (V, error)) (V, error) {
	value, err, _ := c.group.Do(key, func() (interface{}, error) { return fallback() })
	if err != nil {
		var zero V
		return zero, err
	}
	return value.(V), nil
}

func (c *Cache[V]) refreshAsync(key string, fallback func() (V, error)) {
	go func() {
		if value, err := c.fetch(key, fallback); err == nil {
			c.Set(key, value)
		}
	}()
}

func (c *Cache[V]) Set(key string, value V) {
	c.set(key, value, true)
}

func (c *Cache[V]) set(key string, value V, flushAsync bool) {
	if !value.IsValid() {
		return
	}

	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, createdAt: time.Now()}
	c.mu.Unlock()

	if flushAsync {
		go c.flush()
	}
}

// Len 返回缓存中的条目数，包括尚未清理的失效值
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[V]) flush() {
	if !c.flushing.CompareAndSwap(false, true) {
		return
	}
	defer c.flushing.Store(false)

	if c.lastCompact.Add(c.compactEvery).Before(time.Now()) {
		c.compact()
		c.lastCompact = time.Now()
	}

	if p := c.persistence; p != nil && p.lastPersist.Add(p.interval).Before(time.Now()) {
		c.persist()
		p.lastPersist = time.Now()
	}
}

func (c *Cache[V]) compact() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if !e.value.IsValid() {
			delete(c.entries, key)
		}
	}
}

// persist 将文件中较新的值合并到内存，再把合并结果写回文件
func (c *Cache[V]) persist() {
	p := c.persistence
	unlock, err := lockFile(p.path, true, p.handleError)
	if err != nil {
		return
	}
	defer unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	file, closeFile, err := openFile(p.path, p.handleError)
	if err != nil {
		return
	}
	defer closeFile()

	onFile, err := load[V](file)
	if err != nil {
		p.reportError(err)
		return
	}
	if sameEntries(c.entries, onFile) {
		return
	}
	for key, e := range onFile {
		if existing, ok := c.entries[key]; !ok || existing.createdAt.Before(e.createdAt) {
			c.entries[key] = e
		}
	}

	if _, err = file.Seek(0, io.SeekStart); err != nil {
		p.reportError(err)
		return
	}
	if err = file.Truncate(0); err != nil {
		p.reportError(err)
		return
	}
	if err = save(file, c.entries); err != nil {
		p.reportError(err)
	}
}

func (p *persistence) reportError(err error) {
	if p.handleError != nil {
		p.handleError(err)
	}
}

func sameEntries[V Value](left, right map[string]entry[V]) bool {
	if len(left) != len(right) {
		return false
	}
	for key, l := range left {
		r, ok := right[key]
		if !ok || !l.createdAt.Equal(r.createdAt) {
			return false
		}
	}
	return true
}

func load[V Value](r io.Reader) (map[string]entry[V], error) {
	decoder := json.NewDecoder(r)
	entries := make(map[string]entry[V])
	for decoder.More() {
		var e persistedEntry[V]
		if err := decoder.Decode(&e); err != nil {
			return nil, err
		}
		if e.Value.IsValid() {
			entries[e.Key] = entry[V]{value: e.Value, createdAt: e.CreatedAt}
		}
	}
	return entries, nil
}

func save[V Value](w io.Writer, entries map[string]entry[V]) error {
	encoder := json.NewEncoder(w)
	for key, e := range entries {
		if err := encoder.Encode(persistedEntry[V]{Key: key, Value: e.value, CreatedAt: e.createdAt}); err != nil {
			return err
		}
	}
	return nil
}

func lockFile(path string, exclusive bool, handleError func(error)) (context.CancelFunc, error) {
	lock := flock.New(path + ".lock")
	var err error
	if exclusive {
		err = lock.Lock()
	} else {
		err = lock.RLock()
	}
	if err != nil {
		if handleError != nil {
			handleError(err)
		}
		return nil, err
	}
	return func() {
		if err := lock.Unlock(); err != nil && handleError != nil {
			handleError(err)
		}
	}, nil
}

func openFile(path string, handleError func(error)) (*os.File, context.CancelFunc, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		if handleError != nil {
			handleError(err)
		}
		return nil, nil, err
	}
	return file, func() {
		if err := file.Close(); err != nil && handleError != nil {
			handleError(err)
		}
	}, nil
}
