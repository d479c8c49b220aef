// Package s3 stores search runs in Amazon S3 and keeps a cross-run incumbent
// ledger in DynamoDB.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := s3.NewFromConfig(cfg)
//	store := s3blob.NewStore(client, "my-bucket", "corels/runs")
//
//	ledger := s3blob.NewDynamoLedger(dynamodb.NewFromConfig(cfg), "corels-incumbents")
//
// # Features
//
//   - Range reads for efficient partial fetches
//   - Multipart uploads for large cache dumps
//   - Automatic pagination for listing
//   - Conditional writes so the ledger accuracy never regresses
package s3
