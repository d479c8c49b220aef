// Package minio stores search runs in MinIO or any other S3-compatible service
// (Ceph, SeaweedFS, Garage) through the MinIO client.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := minioblob.NewStore(client, "corels", "runs/")
//
// The corels CLI builds the client from a minio://host/bucket/prefix URL and
// reads credentials from MINIO_ACCESS_KEY / MINIO_SECRET_KEY, falling back to
// the AWS environment variables.
package minio
