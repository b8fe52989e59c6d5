// Package storagetest provides an in-memory ObjectStore for tests.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/aldoetobex/interior-mp-backend/pkg/utils"
)

const BaseURL = "https://objects.test/public/"

var ErrInjected = errors.New("injected storage failure")

// Memory keeps objects in a map. The Fail* hooks return a non-nil error to
// make the matching call fail.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte

	FailUpload func(key string) error
	FailCopy   func(src, dst string) error
	FailDelete func(key string) error

	copies int
}

func NewMemory() *Memory {
	return &Memory{objects: map[string][]byte{}}
}

// Put seeds an object without going through Upload hooks.
func (m *Memory) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
}

// Get returns a copy of the object stored under key.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return append([]byte(nil), data...), ok
}

// Has reports whether key is currently stored.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Keys returns every stored key under prefix in natural order.
func (m *Memory) Keys(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	utils.SortNatural(out)
	return out
}

// Copies counts successful Copy calls.
func (m *Memory) Copies() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copies
}

func (m *Memory) Upload(ctx context.Context, key string, r io.Reader, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailUpload != nil {
		if err := m.FailUpload(key); err != nil {
			return err
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.Put(key, data)
	return nil
}

func (m *Memory) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailCopy != nil {
		if err := m.FailCopy(src, dst); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[src]
	if !ok {
		return fmt.Errorf("object %s not found", src)
	}
	m.objects[dst] = append([]byte(nil), data...)
	m.copies++
	return nil
}

func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, k := range keys {
		if m.FailDelete != nil {
			if err := m.FailDelete(k); err != nil {
				return err
			}
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.objects, k)
	}
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	return m.Has(key), nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix = strings.TrimSuffix(prefix, "/")
	var out []string
	for _, k := range m.Keys(prefix + "/") {
		if path.Dir(k) == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *Memory) PublicURL(key string) string { return BaseURL + key }

func (m *Memory) KeyFromURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if key, ok := strings.CutPrefix(raw, BaseURL); ok {
		return key, key != ""
	}
	if strings.Contains(raw, "://") {
		return "", false
	}
	return strings.TrimPrefix(raw, "/"), true
}

// FailOnNth returns a hook that fails the nth call (1-based) and every call after it.
func FailOnNth(n int) func(src, dst string) error {
	var mu sync.Mutex
	calls := 0
	return func(string, string) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls >= n {
			return ErrInjected
		}
		return nil
	}
}
