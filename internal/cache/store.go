package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 管理唯一的缓存槽位。进程生命周期即缓存生命周期，不做任何落盘。
type Store interface {
	// Get 返回当前条目。槽位从未写入过时返回 ErrNotFound。
	Get(ctx context.Context) (*Entry, error)

	// Put 读取完整正文后原子替换槽位，并产出新的 Entry。读取过程中出错时
	// 旧条目保持不变。可选地通过 opts.FetchedAt 指定抓取时间。
	Put(ctx context.Context, body io.Reader, opts PutOptions) (*Entry, error)
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	FetchedAt time.Time
	// MaxBytes 限制正文大小，<=0 表示不限制。
	MaxBytes int64
}

// Entry 是最近一次成功回源的结果。Body 写入后只读，可被多个请求共享。
type Entry struct {
	Body      []byte    `json:"-"`
	FetchedAt time.Time `json:"fetched_at"`
	SizeBytes int64     `json:"size_bytes"`
}

// Age 返回条目相对 now 的存活时长。
func (e *Entry) Age(now time.Time) time.Duration {
	if e == nil {
		return 0
	}
	return now.Sub(e.FetchedAt)
}

// ErrNotFound 表示缓存槽位为空。
var ErrNotFound = errors.New("cache entry not found")

// ErrTooLarge 表示正文超过 PutOptions.MaxBytes。
var ErrTooLarge = errors.New("cache entry exceeds size limit")
