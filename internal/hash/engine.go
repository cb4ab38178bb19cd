package hash

import (
	"context"
	"log/slog"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	fserrors "github.com/Aman-CERP/fsledger/internal/errors"
)

// Engine defaults.
const (
	DefaultMaxBytes  int64 = 512 << 20
	DefaultTimeout         = 10 * time.Second
	DefaultCacheSize       = 4096
)

// Options configures an Engine.
type Options struct {
	// MaxBytes refuses files larger than this. Zero disables the limit.
	MaxBytes int64
	// Timeout is the soft deadline per file. Zero disables it.
	Timeout time.Duration
	// CacheSize is the number of digests kept. Zero selects DefaultCacheSize.
	CacheSize int
	Logger    *slog.Logger
}

// DefaultOptions returns the engine settings used when config is silent.
func DefaultOptions() Options {
	return Options{
		MaxBytes:  DefaultMaxBytes,
		Timeout:   DefaultTimeout,
		CacheSize: DefaultCacheSize,
	}
}

// cacheKey identifies one version of a file. ctime and inode come from the
// platform stat data where available; ctime cannot be set from userspace, so
// a rewrite that restores size and mtime still produces a new key.
type cacheKey struct {
	path  string
	size  int64
	mtime int64
	ctime int64
	inode uint64
	algo  Algorithm
}

func keyFor(path string, info os.FileInfo, a Algorithm) cacheKey {
	inode, ctime := fileIdentity(info)
	return cacheKey{
		path:  path,
		size:  info.Size(),
		mtime: info.ModTime().UnixNano(),
		ctime: ctime,
		inode: inode,
		algo:  a,
	}
}

// Engine hashes files with a size limit, a soft timeout and an LRU cache of
// recent digests.
type Engine struct {
	opts   Options
	cache  *lru.Cache[cacheKey, string]
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[cacheKey, string](opts.CacheSize)
	return &Engine{opts: opts, cache: cache, logger: logger}
}

// Hash fingerprints path, serving unchanged files from the cache.
func (e *Engine) Hash(ctx context.Context, path string, a Algorithm) (string, error) {
	return e.hash(ctx, path, a, true)
}

// hash computes the digest of path. With useCache false the cache is only
// refreshed, never read.
func (e *Engine) hash(ctx context.Context, path string, a Algorithm, useCache bool) (string, error) {
	if _, err := newHasher(a); err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fserrors.HashError("stat failed", err).WithDetail("path", path)
	}
	key := keyFor(path, info, a)
	if useCache {
		if digest, ok := e.cache.Get(key); ok {
			return digest, nil
		}
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	digest, err := HashFile(ctx, path, a, e.opts.MaxBytes)
	if err != nil {
		return "", err
	}
	e.cache.Add(key, digest)
	return digest, nil
}

// Fingerprint is the best-effort form used for events: failures are logged
// and reported as nil. Events follow a change notification, so the content
// is always read again.
func (e *Engine) Fingerprint(ctx context.Context, path string, a Algorithm) *string {
	digest, err := e.hash(ctx, path, a, false)
	if err != nil {
		attrs := append([]any{slog.String("path", path)}, fserrors.FormatForLog(err)...)
		e.logger.Debug("fingerprint unavailable", attrs...)
		return nil
	}
	return &digest
}

// Forget drops cached digests for path.
func (e *Engine) Forget(path string) {
	for _, k := range e.cache.Keys() {
		if k.path == path {
			e.cache.Remove(k)
		}
	}
}

// CacheLen reports the number of cached digests.
func (e *Engine) CacheLen() int {
	return e.cache.Len()
}
