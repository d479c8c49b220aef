package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/alexzheng587/corels/blobstore"
	miniostore "github.com/alexzheng587/corels/blobstore/minio"
	s3store "github.com/alexzheng587/corels/blobstore/s3"
	"github.com/alexzheng587/corels/ledger"
)

// storeURL is a parsed --out value.
type storeURL struct {
	Scheme string // file, s3 or minio
	Host   string // minio endpoint
	Bucket string
	Prefix string
	Path   string // file root
	Secure bool   // minio over TLS
}

// parseStoreURL accepts a bare path, file:///dir, s3://bucket/prefix and
// minio://host/bucket/prefix. minio URLs use TLS when ?secure=true.
func parseStoreURL(raw string) (storeURL, error) {
	if raw == "" {
		return storeURL{}, errors.New("empty store URL")
	}
	if !strings.Contains(raw, "://") {
		return storeURL{Scheme: "file", Path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return storeURL{}, fmt.Errorf("store URL: %w", err)
	}
	switch u.Scheme {
	case "file":
		if u.Path == "" {
			return storeURL{}, fmt.Errorf("store URL %q has no path", raw)
		}
		return storeURL{Scheme: "file", Path: u.Path}, nil
	case "s3":
		if u.Host == "" {
			return storeURL{}, fmt.Errorf("store URL %q has no bucket", raw)
		}
		return storeURL{Scheme: "s3", Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
	case "minio":
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if u.Host == "" || bucket == "" {
			return storeURL{}, fmt.Errorf("store URL %q needs host and bucket", raw)
		}
		return storeURL{
			Scheme: "minio",
			Host:   u.Host,
			Bucket: bucket,
			Prefix: strings.Trim(prefix, "/"),
			Secure: u.Query().Get("secure") == "true",
		}, nil
	default:
		return storeURL{}, fmt.Errorf("unsupported store scheme %q", u.Scheme)
	}
}

// openStore connects to the store behind raw. S3 uses the default AWS
// credential chain, MinIO reads MINIO_ACCESS_KEY and MINIO_SECRET_KEY.
func openStore(ctx context.Context, raw string) (blobstore.BlobStore, error) {
	su, err := parseStoreURL(raw)
	if err != nil {
		return nil, err
	}
	switch su.Scheme {
	case "s3":
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		return s3store.NewStore(awss3.NewFromConfig(cfg), su.Bucket, su.Prefix), nil
	case "minio":
		client, err := minio.New(su.Host, &minio.Options{
			Creds:  credentials.NewEnvMinio(),
			Secure: su.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return miniostore.NewStore(client, su.Bucket, su.Prefix), nil
	default:
		return blobstore.NewLocalStore(su.Path), nil
	}
}

// openLedger returns the DynamoDB ledger on table.
func openLedger(ctx context.Context, table string) (ledger.Ledger, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3store.NewDynamoLedger(dynamodb.NewFromConfig(cfg), table), nil
}
