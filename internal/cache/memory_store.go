package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// NewStore 构建进程内缓存槽位，整站复用一份实例。
func NewStore() Store {
	return &memoryStore{}
}

// memoryStore 只持有一个指针：写入方先完整缓冲正文，再一次性替换，
// 读取方因此永远看不到半写入的条目。
type memoryStore struct {
	current atomic.Pointer[Entry]
}

func (s *memoryStore) Get(ctx context.Context) (*Entry, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	entry := s.current.Load()
	if entry == nil {
		return nil, ErrNotFound
	}
	return entry, nil
}

func (s *memoryStore) Put(ctx context.Context, body io.Reader, opts PutOptions) (*Entry, error) {
	if body == nil {
		return nil, errors.New("cache body required")
	}

	src := body
	if opts.MaxBytes > 0 {
		src = io.LimitReader(body, opts.MaxBytes+1)
	}

	var buf bytes.Buffer
	written, err := copyWithContext(ctx, &buf, src)
	if err != nil {
		return nil, err
	}
	if opts.MaxBytes > 0 && written > opts.MaxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, opts.MaxBytes)
	}

	fetchedAt := opts.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	entry := &Entry{
		Body:      buf.Bytes(),
		FetchedAt: fetchedAt,
		SizeBytes: written,
	}
	s.current.Store(entry)
	return entry, nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
