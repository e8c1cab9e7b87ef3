package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/recipe-api/internal/config"
)

var errCacheMiss = errors.New("cache miss")

// cacheBackend is the storage behind the response cache. Entries are
// scoped to a user and a generation; bumping the generation makes every
// earlier entry of that user unreachable.
type cacheBackend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Generation(ctx context.Context, user string) (int64, error)
	Bump(ctx context.Context, user string) error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func (r redisCache) genKey(user string) string { return r.prefix + ":gen:" + user }

func (r redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	bs, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errCacheMiss
	}
	return bs, err
}

func (r redisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.rdb.SetEx(ctx, key, val, ttl).Err()
}

func (r redisCache) Generation(ctx context.Context, user string) (int64, error) {
	n, err := r.rdb.Get(ctx, r.genKey(user)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Bump increments the generation and keeps the counter alive a little
// longer than any entry it guards.
func (r redisCache) Bump(ctx context.Context, user string) error {
	key := r.genKey(user)
	pipe := r.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*r.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 {
		cw.buf.Write(b)
	} else if remain := cw.limit - cw.size; remain > 0 {
		if int64(len(b)) <= remain {
			cw.buf.Write(b)
		} else {
			cw.buf.Write(b[:remain])
		}
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// truncated reports whether the body outgrew the capture limit.
func (cw *captureWriter) truncated() bool { return cw.limit > 0 && cw.size > cw.limit }

// cacheKeyFrom builds the entry key from the user, their current
// generation and the full request URI. The URI, not the route pattern, is
// used so /recipes/1 and /recipes/2 never share an entry.
func cacheKeyFrom(prefix, user string, gen int64, r *http.Request) string {
	tail := strings.Join([]string{"user", user, "gen", fmt.Sprint(gen), "method", r.Method, "uri", r.URL.RequestURI()}, ":")
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:%x", prefix, sum[:])
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:8+len(hdrJSON)], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	hdr := make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, hdr, bs[8+hlen:], true
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// NewRedisCache caches successful responses of authenticated users in
// Redis, headers included so clients see identical output. A successful
// write by a user (any method outside cfg.Methods answered below 400)
// invalidates all of that user's entries. Without Redis it is a no-op.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, logger *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passthrough
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return newCache(cfg, redisCache{rdb: rdb, prefix: cfg.Prefix, ttl: ttl}, logger)
}

func newCache(cfg config.CacheConfig, backend cacheBackend, logger *slog.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	methods := cfg.Methods()
	maxBody := int64(cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := currentUserID(c)
			if user == "anon" {
				return next(c)
			}
			req := c.Request()
			ctx := req.Context()

			if !methods[strings.ToUpper(req.Method)] {
				if err := next(c); err != nil {
					return err
				}
				if c.Response().Status < http.StatusBadRequest {
					if err := backend.Bump(context.WithoutCancel(ctx), user); err != nil {
						logger.Warn("cache invalidation failed", "user", user, "error", err)
					}
				}
				return nil
			}

			gen, err := backend.Generation(ctx, user)
			if err != nil {
				logger.Warn("cache generation lookup failed", "user", user, "error", err)
				return next(c)
			}
			key := cacheKeyFrom(cfg.Prefix, user, gen, req)

			if bs, err := backend.Get(ctx, key); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) || strings.EqualFold(k, "X-Cache") {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					cacheLookups.WithLabelValues("hit").Inc()
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					if len(body) > 0 {
						_, _ = c.Response().Write(body)
					}
					return nil
				}
			}

			cacheLookups.WithLabelValues("miss").Inc()
			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.truncated() {
				return nil
			}
			hdr := c.Response().Header().Clone()
			payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
			if err != nil {
				return nil
			}
			if err := backend.Set(context.WithoutCancel(ctx), key, payload, ttl); err != nil {
				logger.Warn("cache store failed", "error", err)
			}
			return nil
		}
	}
}
