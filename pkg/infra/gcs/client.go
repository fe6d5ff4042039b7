// Package gcs mirrors release artifacts into a Google Cloud Storage bucket
// and hands back public object URLs for store_url descriptor entries.
package gcs

import (
	"context"
	"io"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

type client struct {
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// New creates an object-store client for the named bucket. prefix is
// joined in front of every object name; empty means the bucket root.
func New(ctx context.Context, bucket, prefix string) (interfaces.ObjectStore, error) {
	if bucket == "" {
		return nil, goerr.New("mirror bucket name is required", goerr.T(types.TagConfig))
	}
	gcsClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client",
			goerr.T(types.TagConfig))
	}
	return &client{
		bucket: gcsClient.Bucket(bucket),
		name:   bucket,
		prefix: prefix,
	}, nil
}

// Upload copies the local file to the bucket and returns its public URL.
func (c *client) Upload(ctx context.Context, localPath, objectName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open artifact for upload", goerr.V("path", localPath))
	}
	defer f.Close()

	object := path.Join(c.prefix, objectName)
	w := c.bucket.Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return "", goerr.Wrap(err, "failed to upload artifact",
			goerr.T(types.TagCollaborator),
			goerr.V("bucket", c.name), goerr.V("object", object))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize artifact upload",
			goerr.T(types.TagCollaborator),
			goerr.V("bucket", c.name), goerr.V("object", object))
	}

	return "https://storage.googleapis.com/" + c.name + "/" + object, nil
}
