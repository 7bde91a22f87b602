package spacetraveling

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"
)

const (
	maxImageWidth = 1200
	minImageWidth = 16
	jpegQuality   = 80
	maxSourceSize = 10 << 20 // 10MB
)

// ImageOptimizer resizes banners from the CMS image host and keeps the
// results on disk.
type ImageOptimizer struct {
	dir     string
	hosts   map[string]bool
	http    *http.Client
	timeout time.Duration
	group   singleflight.Group
}

// NewImageOptimizer creates an optimiser caching into dir that fetches only
// from hosts.
func NewImageOptimizer(dir string, hosts []string, hc *http.Client, timeout time.Duration) *ImageOptimizer {
	allowed := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		allowed[h] = true
	}
	return &ImageOptimizer{dir: dir, hosts: allowed, http: hc, timeout: timeout}
}

func (o *ImageOptimizer) allowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" && u.Scheme != "http" {
		return false
	}
	return o.hosts[u.Hostname()]
}

// Get returns the JPEG for src resized to at most width pixels wide.
func (o *ImageOptimizer) Get(ctx context.Context, src string, width int) ([]byte, error) {
	key := cacheFileName(src, width)
	path := filepath.Join(o.dir, key)
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}
	v, err, _ := o.group.Do(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
		defer cancel()
		raw, err := o.fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		data, err := processImage(bytes.NewReader(raw), width)
		if err != nil {
			return nil, err
		}
		if err := writeFileAtomic(path, data); err != nil {
			slog.Warn("Failed to cache image", "src", src, "error", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (o *ImageOptimizer) fetch(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxSourceSize))
}

// processImage decodes an image from src, resizes it down to width if it
// is wider, and encodes it as JPEG.
func processImage(src io.Reader, width int) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > width {
		newH := h * width / w
		if newH < 1 {
			newH = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, width, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func cacheFileName(src string, width int) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:16]) + "-" + strconv.Itoa(width) + ".jpg"
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".img-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (a *App) handleImage(c echo.Context) error {
	src := c.QueryParam("url")
	if !a.images.allowed(src) {
		return echo.NewHTTPError(http.StatusBadRequest, "image host not allowed")
	}
	width := maxImageWidth
	if w := c.QueryParam("w"); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid width")
		}
		width = min(max(n, minImageWidth), maxImageWidth)
	}
	data, err := a.images.Get(c.Request().Context(), src, width)
	if err != nil {
		slog.Warn("Image optimisation failed, redirecting to source", "src", src, "error", err)
		return c.Redirect(http.StatusFound, src)
	}
	return c.Blob(http.StatusOK, "image/jpeg", data)
}
