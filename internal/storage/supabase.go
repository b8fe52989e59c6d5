package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	storagego "github.com/supabase-community/storage-go"

	"github.com/aldoetobex/interior-mp-backend/pkg/utils"
)

/*
Supabase implements ObjectStore on Supabase Storage through storage-go.

The client is built with the service key, so it bypasses bucket RLS. Objects
are served through the bucket's public URL, which requires a public bucket.
*/
type Supabase struct {
	client *storagego.Client
	bucket string
}

func NewSupabase(supabaseURL, serviceKey, bucket string) *Supabase {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	return &Supabase{
		client: storagego.NewClient(baseURL+"/storage/v1", serviceKey, nil),
		bucket: bucket,
	}
}

// Upload sends a new object, overwriting any object with the same key.
func (s *Supabase) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if contentType == "" {
		contentType = contentTypeOf(key)
	}
	upsert := true
	if _, err := s.client.UploadFile(s.bucket, key, r, storagego.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}); err != nil {
		return fmt.Errorf("supabase upload %s: %w", key, err)
	}
	return nil
}

// Copy downloads src and re-uploads it under dst.
func (s *Supabase) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := s.client.DownloadFile(s.bucket, src)
	if err != nil {
		return fmt.Errorf("supabase download %s: %w", src, err)
	}
	return s.Upload(ctx, dst, bytes.NewReader(data), contentTypeOf(dst))
}

// Delete removes objects by key. Missing keys are not an error.
func (s *Supabase) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.RemoveFile(s.bucket, keys); err != nil {
		return fmt.Errorf("supabase delete %v: %w", keys, err)
	}
	return nil
}

func (s *Supabase) Exists(ctx context.Context, key string) (bool, error) {
	keys, err := s.List(ctx, path.Dir(key))
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if k == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *Supabase) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix = strings.TrimSuffix(prefix, "/")
	files, err := s.client.ListFiles(s.bucket, prefix, storagego.FileSearchOptions{
		Limit: 1000,
	})
	if err != nil {
		return nil, fmt.Errorf("supabase list %s: %w", prefix, err)
	}
	keys := make([]string, 0, len(files))
	for _, f := range files {
		if f.Name == "" {
			continue
		}
		keys = append(keys, path.Join(prefix, f.Name))
	}
	utils.SortNatural(keys)
	return keys, nil
}

func (s *Supabase) PublicURL(key string) string {
	return s.client.GetPublicUrl(s.bucket, key).SignedURL
}

func (s *Supabase) KeyFromURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	base := s.client.GetPublicUrl(s.bucket, "").SignedURL
	if key, ok := strings.CutPrefix(raw, base); ok {
		return key, key != ""
	}
	if strings.Contains(raw, "://") {
		return "", false
	}
	return strings.TrimPrefix(raw, "/"), true
}

func contentTypeOf(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
