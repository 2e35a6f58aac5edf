package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	// decoders for formats a remote image may arrive in
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/catalog/catalog/domain"
)

const (
	DefaultFetchTimeout  = 30 * time.Second
	DefaultMaxImageBytes = 20 << 20

	// DefaultMaxImagePixels is 0x3FFF * 0x3FFF. Decoding allocates the whole
	// pixel buffer up front, so dimensions are checked before it.
	DefaultMaxImagePixels = 268402689

	jpegQuality = 90

	// file systems commonly cap names at 255 bytes
	maxSanitizedLen = 200
	hashSuffixLen   = 16
)

// ImageSource is what an upload request offers as its image. UploadedReference is
// set when the request's file has already been handed to the ImageStore.
type ImageSource struct {
	UploadedReference string
	URL               string
}

// Pipeline turns an ImageSource into a single stored image reference.
type Pipeline struct {
	store     domain.ImageStore
	client    *http.Client
	maxBytes  int64
	maxPixels int64
	now       func() time.Time
}

// NewPipeline creates a pipeline writing to store. A nil client gets one with
// DefaultFetchTimeout; maxBytes <= 0 means DefaultMaxImageBytes and
// maxPixels <= 0 means DefaultMaxImagePixels.
func NewPipeline(store domain.ImageStore, client *http.Client, maxBytes, maxPixels int64) *Pipeline {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxImagePixels
	}
	return &Pipeline{
		store:     store,
		client:    client,
		maxBytes:  maxBytes,
		maxPixels: maxPixels,
		now:       time.Now,
	}
}

// Resolve returns the image reference for src.
// An uploaded file takes precedence over the URL. A URL is fetched, decoded and
// re-encoded as JPEG before anything is written, so a bad source never leaves a
// file in the store.
func (p *Pipeline) Resolve(ctx context.Context, src ImageSource) (string, error) {
	if src.UploadedReference != "" {
		return src.UploadedReference, nil
	}

	if src.URL == "" {
		return "", domain.ErrMissingImage
	}

	img, err := p.fetch(ctx, src.URL)
	if err != nil {
		return "", err
	}

	data, err := encodeJPEG(img)
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode jpeg: %v", domain.ErrInvalidImageSource, err)
	}

	name := p.generateName(src.URL)
	ref, err := p.store.Store(ctx, data, name)
	if err != nil {
		if errors.Is(err, domain.ErrStorageWriteFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", domain.ErrStorageWriteFailed, err)
	}

	log.Info().Str("url", src.URL).Str("reference", ref).Msg("Image downloaded and saved")
	return ref, nil
}

func (p *Pipeline) fetch(ctx context.Context, rawURL string) (image.Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: not an http(s) url: %q", domain.ErrInvalidImageSource, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", domain.ErrInvalidImageSource, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch image: %v", domain.ErrInvalidImageSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetch returned status %d", domain.ErrInvalidImageSource, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read image body: %v", domain.ErrInvalidImageSource, err)
	}
	if int64(len(body)) > p.maxBytes {
		return nil, fmt.Errorf("%w: image larger than %d bytes", domain.ErrInvalidImageSource, p.maxBytes)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image header: %v", domain.ErrInvalidImageSource, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > p.maxPixels {
		return nil, fmt.Errorf("%w: image is %dx%d, limit is %d pixels", domain.ErrInvalidImageSource, cfg.Width, cfg.Height, p.maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", domain.ErrInvalidImageSource, err)
	}

	log.Debug().Str("url", rawURL).Str("format", format).Int("bytes", len(body)).Msg("Fetched remote image")
	return img, nil
}

// generateName builds <unix-millis>-<sanitized url>.jpg.
func (p *Pipeline) generateName(rawURL string) string {
	return strconv.FormatInt(p.now().UnixMilli(), 10) + "-" + sanitizeURL(rawURL) + ".jpg"
}

// sanitizeURL replaces every character outside [A-Za-z0-9] with one '_'. Results
// longer than maxSanitizedLen are cut and suffixed with a hash of the full url,
// keeping distinct urls distinct.
func sanitizeURL(rawURL string) string {
	var b strings.Builder
	b.Grow(len(rawURL))
	for _, r := range rawURL {
		if r < 0x80 && isAlnum(byte(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	out := b.String()
	if len(out) <= maxSanitizedLen {
		return out
	}

	sum := sha256.Sum256([]byte(rawURL))
	keep := maxSanitizedLen - hashSuffixLen - 1
	return out[:keep] + "_" + hex.EncodeToString(sum[:])[:hashSuffixLen]
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// encodeJPEG flattens transparency onto white, since JPEG has no alpha channel.
func encodeJPEG(img image.Image) ([]byte, error) {
	if o, ok := img.(interface{ Opaque() bool }); !ok || !o.Opaque() {
		bounds := img.Bounds()
		flat := image.NewRGBA(bounds)
		draw.Draw(flat, bounds, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
		draw.Draw(flat, bounds, img, bounds.Min, draw.Over)
		img = flat
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
