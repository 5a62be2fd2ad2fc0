package config

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// LoadAWS loads the default AWS configuration for the configured region
// using the standard environment/credentials chain.
func LoadAWS(ctx context.Context, cfg AWSConfig) (aws.Config, error) {
	if cfg.Region == "" {
		return awsconfig.LoadDefaultConfig(ctx)
	}
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
}

// NewDynamoDB returns a DynamoDB client, pointed at the override endpoint
// when one is configured.
func NewDynamoDB(awsCfg aws.Config, cfg AWSConfig) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
}
