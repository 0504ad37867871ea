package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	// Registered decoders for photos users link to.
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"

	"github.com/diewo77/field-reports/internal/metrics"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// MaxPhotoBytes caps the size of a downloaded photo.
	MaxPhotoBytes = 10 << 20
	// MaxPhotoPixels caps width*height, checked from the header before any decode.
	MaxPhotoPixels = 40_000_000
)

var (
	ErrPhotoTooLarge      = errors.New("photo exceeds size limit")
	ErrPhotoTooManyPixels = errors.New("photo exceeds pixel limit")
	ErrPhotoHostRefused   = errors.New("photo host is not publicly routable")
)

// Photo is a decoded, embeddable picture.
type Photo struct {
	Data   []byte
	Format string // png, jpeg or gif
	Width  int
	Height int
}

// PhotoResult is the outcome of a best-effort fetch: either a Photo or the reason it is missing.
type PhotoResult struct {
	Photo Photo
	Err   error
}

// OK reports whether the fetch produced a usable photo.
func (r PhotoResult) OK() bool { return r.Err == nil }

// PhotoFetcher retrieves the optional report photo.
type PhotoFetcher interface {
	Fetch(ctx context.Context, url string) PhotoResult
}

// HTTPPhotoFetcher downloads photos with a single bounded GET. Unless built
// with AllowPrivateHosts, it refuses to dial loopback, private, link-local and
// other non-public addresses, redirects included.
type HTTPPhotoFetcher struct {
	client       *http.Client
	timeout      time.Duration
	allowPrivate bool
}

// FetcherOption configures an HTTPPhotoFetcher.
type FetcherOption func(*HTTPPhotoFetcher)

// AllowPrivateHosts lets the fetcher reach non-public addresses (local dev, tests).
func AllowPrivateHosts() FetcherOption {
	return func(f *HTTPPhotoFetcher) { f.allowPrivate = true }
}

// NewHTTPPhotoFetcher creates a fetcher whose every call is bounded by timeout.
func NewHTTPPhotoFetcher(timeout time.Duration, opts ...FetcherOption) *HTTPPhotoFetcher {
	f := &HTTPPhotoFetcher{timeout: timeout}
	for _, opt := range opts {
		opt(f)
	}
	dialer := &net.Dialer{Timeout: timeout}
	if !f.allowPrivate {
		dialer.Control = refusePrivate
	}
	f.client = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          4,
			IdleConnTimeout:       30 * time.Second,
		},
	}
	return f
}

// refusePrivate runs after DNS resolution, so hostnames resolving to internal
// addresses are caught too.
func refusePrivate(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !PublicAddr(addr) {
		return fmt.Errorf("%w: %s", ErrPhotoHostRefused, addr)
	}
	return nil
}

// PublicAddr reports whether addr is a globally routable unicast address.
func PublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(),
		addr.IsUnspecified(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast():
		return false
	}
	// 100.64.0.0/10 carrier-grade NAT
	if addr.Is4() && addr.As4()[0] == 100 && addr.As4()[1]&0xC0 == 64 {
		return false
	}
	return true
}

// Fetch never retries. Any transport, status or decoding problem is returned in the result.
func (f *HTTPPhotoFetcher) Fetch(ctx context.Context, url string) PhotoResult {
	res := f.fetch(ctx, url)
	if res.OK() {
		metrics.PhotoFetchTotal.WithLabelValues("ok").Inc()
	} else {
		metrics.PhotoFetchTotal.WithLabelValues("failed").Inc()
	}
	return res
}

func (f *HTTPPhotoFetcher) fetch(ctx context.Context, url string) PhotoResult {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PhotoResult{Err: fmt.Errorf("build photo request: %w", err)}
	}
	req.Header.Set("Accept", "image/*")
	resp, err := f.client.Do(req)
	if err != nil {
		return PhotoResult{Err: fmt.Errorf("get photo: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return PhotoResult{Err: fmt.Errorf("get photo: unexpected status %d", resp.StatusCode)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxPhotoBytes+1))
	if err != nil {
		return PhotoResult{Err: fmt.Errorf("read photo: %w", err)}
	}
	if len(data) > MaxPhotoBytes {
		return PhotoResult{Err: ErrPhotoTooLarge}
	}
	photo, err := DecodePhoto(data)
	if err != nil {
		return PhotoResult{Err: err}
	}
	return PhotoResult{Photo: photo}
}

// DecodePhoto identifies image bytes. PNG, JPEG and GIF pass through untouched;
// other decodable formats (webp, bmp) are re-encoded as PNG for Word.
func DecodePhoto(data []byte) (Photo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Photo{}, fmt.Errorf("decode photo: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPhotoPixels {
		return Photo{}, fmt.Errorf("%w: %dx%d", ErrPhotoTooManyPixels, cfg.Width, cfg.Height)
	}
	switch format {
	case "png", "jpeg", "gif":
		return Photo{Data: data, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Photo{}, fmt.Errorf("decode %s photo: %w", format, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Photo{}, fmt.Errorf("re-encode %s photo: %w", format, err)
	}
	b := img.Bounds()
	return Photo{Data: buf.Bytes(), Format: "png", Width: b.Dx(), Height: b.Dy()}, nil
}
