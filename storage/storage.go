// Package storage keeps attachment bytes behind the casdoor/oss interface.
package storage

import (
	"fmt"

	aws3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/casdoor/oss"
	"github.com/casdoor/oss/s3"

	"tweetyard/config"
)

// MediaPrefix is the URL path under which the local file system store is served.
const MediaPrefix = "/media/"

// New returns the store selected by c.Provider.
func New(c config.Storage) (oss.StorageInterface, error) {
	switch c.Provider {
	case "filesystem", "":
		return NewFileSystem(c.Bucket, MediaPrefix)
	case "aws-s3":
		if c.ID == "" || c.Secret == "" || c.Bucket == "" || c.Region == "" {
			return nil, fmt.Errorf("id, secret, bucket and region are required for aws-s3")
		}
		return s3.New(&s3.Config{
			AccessID:   c.ID,
			AccessKey:  c.Secret,
			Region:     c.Region,
			Bucket:     c.Bucket,
			Endpoint:   c.Endpoint,
			S3Endpoint: c.Endpoint,
			ACL:        aws3.BucketCannedACLPublicRead,
		}), nil
	case "minio":
		if c.Endpoint == "" || c.ID == "" || c.Secret == "" || c.Bucket == "" {
			return nil, fmt.Errorf("endpoint, id, secret and bucket are required for minio")
		}
		region := c.Region
		if region == "" {
			region = "us-east-1"
		}
		return s3.New(&s3.Config{
			AccessID:         c.ID,
			AccessKey:        c.Secret,
			Region:           region,
			Bucket:           c.Bucket,
			Endpoint:         c.Endpoint,
			S3Endpoint:       c.Endpoint,
			ACL:              aws3.BucketCannedACLPublicRead,
			S3ForcePathStyle: true,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", c.Provider)
	}
}
