// Package aws_dynamodb provides the DynamoDB item expectation: blocking waits for
// an item to exist (optionally with a subset of expected attribute values), to not
// exist, and for a table to be or not be empty. DynamoDB ships no native waiter
// for item state, so every wait here is a fixed-interval poll over GetItem or a
// COUNT-limited Scan.
package aws_dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/SharedCode/awsexpect"
)

// Client is the subset of the DynamoDB API an ItemExpectation reads from.
// *dynamodb.Client satisfies it; tests substitute a fake.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// ItemExpectation is a short-lived handle bound to one DynamoDB table. It holds no
// mutable state; create one per call site. Keys and entries are plain Go maps,
// marshaled to DynamoDB attribute values internally.
type ItemExpectation struct {
	client    Client
	tableName string
}

// Expect returns an expectation for items in the given table.
func Expect(client Client, tableName string) *ItemExpectation {
	return &ItemExpectation{
		client:    client,
		tableName: tableName,
	}
}

// ToExist waits with the default timeout & poll interval and no entry filter.
// See ToExistExt.
func (e *ItemExpectation) ToExist(ctx context.Context, key map[string]any) (map[string]any, error) {
	return e.ToExistExt(ctx, key, awsexpect.DefaultTimeout, awsexpect.DefaultPollInterval, nil)
}

// ToExistExt polls GetItem until the item at key exists and, when entries is
// non-nil, contains every key/value pair in entries (extra attributes ignored).
// The full item is returned verbatim. Lookup errors terminate the wait and
// propagate unchanged; exceeding timeout returns a DynamoDBTimeoutError carrying
// the table name, key and timeout.
func (e *ItemExpectation) ToExistExt(ctx context.Context, key map[string]any, timeout time.Duration, pollInterval time.Duration, entries map[string]any) (map[string]any, error) {
	keyAttrs, err := attributevalue.MarshalMap(key)
	if err != nil {
		return nil, err
	}
	var found map[string]any
	check := func(ctx context.Context) (bool, error) {
		item, err := e.getItem(ctx, keyAttrs)
		if err != nil {
			return false, err
		}
		if item == nil {
			return false, nil
		}
		if entries != nil && !awsexpect.MatchesEntries(item, entries) {
			return false, nil
		}
		found = item
		return true, nil
	}
	if err := awsexpect.Poll(ctx, check, timeout, awsexpect.EffectiveInterval(pollInterval)); err != nil {
		if errors.Is(err, awsexpect.ErrWaitTimeout) {
			return nil, &awsexpect.DynamoDBTimeoutError{TableName: e.tableName, Key: key, Timeout: timeout}
		}
		return nil, err
	}
	return found, nil
}

// ToNotExist waits with the default timeout & poll interval. See ToNotExistExt.
func (e *ItemExpectation) ToNotExist(ctx context.Context, key map[string]any) error {
	return e.ToNotExistExt(ctx, key, awsexpect.DefaultTimeout, awsexpect.DefaultPollInterval)
}

// ToNotExistExt polls GetItem until the item at key no longer exists. An already
// absent item satisfies the wait on the first read, without sleeping.
func (e *ItemExpectation) ToNotExistExt(ctx context.Context, key map[string]any, timeout time.Duration, pollInterval time.Duration) error {
	keyAttrs, err := attributevalue.MarshalMap(key)
	if err != nil {
		return err
	}
	check := func(ctx context.Context) (bool, error) {
		item, err := e.getItem(ctx, keyAttrs)
		if err != nil {
			return false, err
		}
		return item == nil, nil
	}
	if err := awsexpect.Poll(ctx, check, timeout, awsexpect.EffectiveInterval(pollInterval)); err != nil {
		if errors.Is(err, awsexpect.ErrWaitTimeout) {
			return &awsexpect.DynamoDBTimeoutError{TableName: e.tableName, Key: key, Timeout: timeout}
		}
		return err
	}
	return nil
}

// ToBeEmpty waits with the default timeout & poll interval. See ToBeEmptyExt.
func (e *ItemExpectation) ToBeEmpty(ctx context.Context) error {
	return e.ToBeEmptyExt(ctx, awsexpect.DefaultTimeout, awsexpect.DefaultPollInterval)
}

// ToBeEmptyExt polls Scan until the table contains no items. The scan requests a
// COUNT of at most one item, so each poll reads a single page regardless of table
// size.
func (e *ItemExpectation) ToBeEmptyExt(ctx context.Context, timeout time.Duration, pollInterval time.Duration) error {
	check := func(ctx context.Context) (bool, error) {
		count, err := e.scanCount(ctx)
		if err != nil {
			return false, err
		}
		return count == 0, nil
	}
	if err := awsexpect.Poll(ctx, check, timeout, awsexpect.EffectiveInterval(pollInterval)); err != nil {
		if errors.Is(err, awsexpect.ErrWaitTimeout) {
			return &awsexpect.DynamoDBTimeoutError{
				TableName: e.tableName,
				Timeout:   timeout,
				Message:   fmt.Sprintf("timed out after %v waiting for table %s to be empty", timeout, e.tableName),
			}
		}
		return err
	}
	return nil
}

// ToNotBeEmpty waits with the default timeout & poll interval. See ToNotBeEmptyExt.
func (e *ItemExpectation) ToNotBeEmpty(ctx context.Context) error {
	return e.ToNotBeEmptyExt(ctx, awsexpect.DefaultTimeout, awsexpect.DefaultPollInterval)
}

// ToNotBeEmptyExt polls Scan until the table contains at least one item.
func (e *ItemExpectation) ToNotBeEmptyExt(ctx context.Context, timeout time.Duration, pollInterval time.Duration) error {
	check := func(ctx context.Context) (bool, error) {
		count, err := e.scanCount(ctx)
		if err != nil {
			return false, err
		}
		return count > 0, nil
	}
	if err := awsexpect.Poll(ctx, check, timeout, awsexpect.EffectiveInterval(pollInterval)); err != nil {
		if errors.Is(err, awsexpect.ErrWaitTimeout) {
			return &awsexpect.DynamoDBTimeoutError{
				TableName: e.tableName,
				Timeout:   timeout,
				Message:   fmt.Sprintf("timed out after %v waiting for table %s to not be empty", timeout, e.tableName),
			}
		}
		return err
	}
	return nil
}

// getItem performs the point lookup and unmarshals the item, or returns nil when
// the item does not exist.
func (e *ItemExpectation) getItem(ctx context.Context, keyAttrs map[string]types.AttributeValue) (map[string]any, error) {
	out, err := e.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(e.tableName),
		Key:       keyAttrs,
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var item map[string]any
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}
	return item, nil
}

func (e *ItemExpectation) scanCount(ctx context.Context) (int32, error) {
	out, err := e.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(e.tableName),
		Select:    types.SelectCount,
		Limit:     aws.Int32(1),
	})
	if err != nil {
		return 0, err
	}
	return out.Count, nil
}
