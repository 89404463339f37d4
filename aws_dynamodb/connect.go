package aws_dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type Config struct {
	// "http://127.0.0.1:4566"
	HostEndpointUrl string
	// "us-east-1"
	Region   string
	Username string
	Password string
}

// Connect to a DynamoDB compatible Server endpoint, e.g. dynamodb-local or localstack.
func Connect(config Config) *dynamodb.Client {
	client := dynamodb.NewFromConfig(aws.Config{Region: config.Region}, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(config.HostEndpointUrl)
		o.Credentials = credentials.NewStaticCredentialsProvider(config.Username, config.Password, "")
	})
	return client
}

// ConnectWithDefaultConfig connects using the AWS SDK default configuration chain
// (environment, shared config, instance role) of the host machine.
func ConnectWithDefaultConfig(ctx context.Context) (*dynamodb.Client, error) {
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(sdkConfig), nil
}
