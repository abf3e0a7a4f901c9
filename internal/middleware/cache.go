package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/course-commerce/internal/config"
)

// captureWriter copies the response body up to limit while forwarding it.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

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

// CatalogCache caches successful catalog reads in Redis.  Entries are
// addressed through a version counter so Invalidate drops every cached
// catalog page at once.
type CatalogCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
}

// NewCatalogCache returns a cache; rdb may be nil, which disables it.
func NewCatalogCache(cfg config.CacheConfig, rdb *redis.Client) *CatalogCache {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	return &CatalogCache{cfg: cfg, rdb: rdb}
}

func (cc *CatalogCache) enabled() bool { return cc != nil && cc.cfg.Enabled && cc.rdb != nil }

func (cc *CatalogCache) versionKey() string { return cc.cfg.Prefix + ":version" }

// Invalidate bumps the catalog version.  Called after catalog writes.
func (cc *CatalogCache) Invalidate(ctx context.Context) error {
	if !cc.enabled() {
		return nil
	}
	return cc.rdb.Incr(ctx, cc.versionKey()).Err()
}

// key hashes route and query under the current version.
func (cc *CatalogCache) key(ctx context.Context, c echo.Context) string {
	version, err := cc.rdb.Get(ctx, cc.versionKey()).Int64()
	if err != nil {
		version = 0
	}
	tail := strings.Join([]string{"route", c.Path(), "q", c.Request().URL.RawQuery}, ":")
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:v%d:%x", cc.cfg.Prefix, version, sum[:])
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
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
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}

// Middleware serves cached responses and stores 200 responses on a miss.
// Truncated bodies are never stored.
func (cc *CatalogCache) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !cc.enabled() {
			return next
		}
		maxBody := int64(cc.cfg.MaxBodyBytes)
		return func(c echo.Context) error {
			if !cc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cc.key(ctx, c)

			if bs, err := cc.rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, "Content-Length") {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, _ = c.Response().Write(body)
					return nil
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || (maxBody > 0 && cw.size > maxBody) {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
				_ = cc.rdb.SetEx(context.WithoutCancel(ctx), key, payload, cc.cfg.TTL).Err()
			}
			return nil
		}
	}
}
