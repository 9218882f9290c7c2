package packs

import (
	"context"
	"fmt"

	getter "github.com/hashicorp/go-getter"
)

// Fetch downloads the pack directory at src into dst. src is any go-getter
// address: a local path, an http(s) archive, git::, s3:: or gcs::. A
// "//subdir" suffix selects a subdirectory of the source.
func Fetch(ctx context.Context, dst, src string) error {
	if src == "" {
		return fmt.Errorf("fetch: source required")
	}
	if dst == "" {
		return fmt.Errorf("fetch: destination required")
	}
	if err := getter.Get(dst, src, getter.WithContext(ctx)); err != nil {
		return fmt.Errorf("fetch %s: %w", src, err)
	}
	return nil
}
