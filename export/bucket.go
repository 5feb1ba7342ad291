package export

import (
	"context"
	"fmt"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/janelia-flyem/cardiowave/cardio"
	"github.com/janelia-flyem/cardiowave/domain"
	"github.com/janelia-flyem/cardiowave/engine"
)

// OpenBucket returns a blob.Bucket for the given reference.  The reference is a
// gocloud URL such as
//
//	file:///path/to/dir
//	mem://
//	gs://<bucketname>
//	s3://<bucketname>/<optional prefix>
func OpenBucket(ctx context.Context, ref string) (*blob.Bucket, error) {
	if strings.HasPrefix(ref, "s3://") {
		parts := strings.SplitN(strings.TrimPrefix(ref, "s3://"), "/", 2)
		bucket, err := blob.OpenBucket(ctx, "s3://"+parts[0])
		if err != nil {
			return nil, err
		}
		if len(parts) == 2 && parts[1] != "" {
			prefix := strings.TrimSuffix(parts[1], "/") + "/"
			bucket = blob.PrefixedBucket(bucket, prefix)
		}
		return bucket, nil
	}
	return blob.OpenBucket(ctx, ref)
}

// CheckKey returns an error if key is empty, absolute or climbs out of its bucket
// through a ".." element.
func CheckKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("export key must not be empty")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("export key %q must be a relative slash-separated path", key)
	}
	for _, elem := range strings.Split(key, "/") {
		if elem == ".." {
			return fmt.Errorf("export key %q must not contain \"..\"", key)
		}
	}
	return nil
}

// ToBucket writes the state as an Arrow stream under key in an open bucket.
func ToBucket(ctx context.Context, bucket *blob.Bucket, key string, dom *domain.Domain, step uint64, states []engine.State) error {
	if err := CheckKey(key); err != nil {
		return err
	}
	timedLog := cardio.NewTimeLog()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: "application/vnd.apache.arrow.stream"})
	if err != nil {
		return err
	}
	if err := WriteArrow(w, dom, step, states); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("unable to finish writing %q: %v", key, err)
	}
	timedLog.Infof("Exported %d cells of step %d to %q", len(states), step, key)
	return nil
}

// ToURL opens the bucket reference, writes the state under key and closes the bucket.
func ToURL(ctx context.Context, ref, key string, dom *domain.Domain, step uint64, states []engine.State) error {
	bucket, err := OpenBucket(ctx, ref)
	if err != nil {
		return fmt.Errorf("can't open bucket reference @ %q: %v", ref, err)
	}
	defer bucket.Close()
	return ToBucket(ctx, bucket, key, dom, step, states)
}
