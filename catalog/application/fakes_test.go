package application

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"sync"
	"testing"

	"github.com/dfryer1193/catalog/catalog/domain"
)

// memoryStore is an ImageStore keeping blobs in a map.
type memoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{blobs: make(map[string][]byte)}
}

func (m *memoryStore) Store(ctx context.Context, data []byte, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	ref := "mem/" + name
	m.blobs[ref] = data
	return ref, nil
}

func (m *memoryStore) StoreUploadedFile(ctx context.Context, file *multipart.FileHeader) (string, error) {
	return "", errors.New("not used")
}

func (m *memoryStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// memoryRepository is a ProductRepository over a slice.
type memoryRepository struct {
	mu       sync.Mutex
	products []*domain.Product
	err      error
}

func (r *memoryRepository) Create(ctx context.Context, p *domain.Product) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	p.ID = int64(len(r.products) + 1)
	stored := *p
	r.products = append(r.products, &stored)
	return p.ID, nil
}

func (r *memoryRepository) ListAll(ctx context.Context) ([]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Product, len(r.products))
	copy(out, r.products)
	return out, nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 1 || id > int64(len(r.products)) {
		return nil, domain.ErrNotFound
	}
	return r.products[id-1], nil
}

// pngBytes renders a small half-transparent PNG.
func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.NRGBA{R: 20, G: 40, B: 200, A: uint8(x * 32)})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}
