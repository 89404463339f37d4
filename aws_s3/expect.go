// Package aws_s3 provides the S3 object expectation: blocking waits for an object
// to exist, to not exist, or to contain an expected set of JSON entries.
// Existence waits delegate to the AWS SDK's native ObjectExists/ObjectNotExists
// waiters; the entries wait polls GetObject because no native waiter covers
// object content.
package aws_s3

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/SharedCode/awsexpect"
)

// Client is the subset of the S3 API an ObjectExpectation reads from. *s3.Client
// satisfies it; tests substitute a fake. The SDK's object waiters accept the
// embedded HeadObjectAPIClient directly.
type Client interface {
	s3.HeadObjectAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ObjectExpectation is a short-lived handle bound to one S3 object. It holds no
// mutable state; create one per call site.
type ObjectExpectation struct {
	client Client
	bucket string
	key    string
}

// Expect returns an expectation for the object at s3://bucket/key.
func Expect(client Client, bucket string, key string) *ObjectExpectation {
	return &ObjectExpectation{
		client: client,
		bucket: bucket,
		key:    key,
	}
}

// ToExist waits with the default timeout & poll interval. See ToExistExt.
func (e *ObjectExpectation) ToExist(ctx context.Context) (*s3.HeadObjectOutput, error) {
	return e.ToExistExt(ctx, awsexpect.DefaultTimeout, awsexpect.DefaultPollInterval)
}

// ToExistExt waits until the object exists, using the SDK's ObjectExists waiter as
// the blocking primitive. When the waiter exhausts its budget an S3TimeoutError is
// returned; any other waiter error (e.g. access denied) propagates unchanged. On
// success one fresh HeadObject is issued and its output returned, so the caller
// sees the object's current metadata rather than the waiter's internal read.
func (e *ObjectExpectation) ToExistExt(ctx context.Context, timeout time.Duration, pollInterval time.Duration) (*s3.HeadObjectOutput, error) {
	delay := awsexpect.EffectiveInterval(pollInterval)
	waiter := s3.NewObjectExistsWaiter(e.client, func(o *s3.ObjectExistsWaiterOptions) {
		o.MinDelay = delay
		o.MaxDelay = delay
		// Retry only while the object is missing; any other failure is terminal
		// and must reach the caller unchanged.
		o.Retryable = func(ctx context.Context, in *s3.HeadObjectInput, out *s3.HeadObjectOutput, err error) (bool, error) {
			if err == nil {
				return false, nil
			}
			var notFound *types.NotFound
			if errors.As(err, &notFound) {
				return true, nil
			}
			return false, err
		}
	})
	if err := waiter.Wait(ctx, e.headInput(), timeout); err != nil {
		if isWaitExhausted(err) {
			return nil, &awsexpect.S3TimeoutError{Bucket: e.bucket, Key: e.key, Timeout: timeout}
		}
		return nil, err
	}
	return e.client.HeadObject(ctx, e.headInput())
}

// ToNotExist waits with the default timeout & poll interval. See ToNotExistExt.
func (e *ObjectExpectation) ToNotExist(ctx context.Context) error {
	return e.ToNotExistExt(ctx, awsexpect.DefaultTimeout, awsexpect.DefaultPollInterval)
}

// ToNotExistExt waits until the object no longer exists, using the SDK's
// ObjectNotExists waiter. Waiter exhaustion is translated to an S3TimeoutError;
// other errors propagate unchanged.
func (e *ObjectExpectation) ToNotExistExt(ctx context.Context, timeout time.Duration, pollInterval time.Duration) error {
	delay := awsexpect.EffectiveInterval(pollInterval)
	waiter := s3.NewObjectNotExistsWaiter(e.client, func(o *s3.ObjectNotExistsWaiterOptions) {
		o.MinDelay = delay
		o.MaxDelay = delay
		// Retry only while the object still exists; NotFound is the success
		// state and any other failure is terminal.
		o.Retryable = func(ctx context.Context, in *s3.HeadObjectInput, out *s3.HeadObjectOutput, err error) (bool, error) {
			if err == nil {
				return true, nil
			}
			var notFound *types.NotFound
			if errors.As(err, &notFound) {
				return false, nil
			}
			return false, err
		}
	})
	if err := waiter.Wait(ctx, e.headInput(), timeout); err != nil {
		if isWaitExhausted(err) {
			return &awsexpect.S3TimeoutError{Bucket: e.bucket, Key: e.key, Timeout: timeout}
		}
		return err
	}
	return nil
}

// ToMatchEntries waits with the default timeout & poll interval. See ToMatchEntriesExt.
func (e *ObjectExpectation) ToMatchEntries(ctx context.Context, entries map[string]any) (map[string]any, error) {
	return e.ToMatchEntriesExt(ctx, entries, awsexpect.DefaultTimeout, awsexpect.DefaultPollInterval)
}

// ToMatchEntriesExt polls GetObject until the object exists, its body parses as a
// JSON object, and that object contains every key/value pair in entries (extra
// fields ignored). The parsed body is returned. A missing object or a body that is
// not a JSON object counts as "not yet"; every other read error terminates the
// wait and propagates unchanged.
func (e *ObjectExpectation) ToMatchEntriesExt(ctx context.Context, entries map[string]any, timeout time.Duration, pollInterval time.Duration) (map[string]any, error) {
	var matched map[string]any
	check := func(ctx context.Context) (bool, error) {
		result, err := e.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(e.bucket),
			Key:    aws.String(e.key),
		})
		if err != nil {
			if isNotFound(err) {
				return false, nil
			}
			return false, err
		}
		defer result.Body.Close()
		data, err := io.ReadAll(result.Body)
		if err != nil {
			return false, err
		}
		var body map[string]any
		if err := json.Unmarshal(data, &body); err != nil {
			// Not (yet) a JSON object. Keep polling.
			return false, nil
		}
		if !awsexpect.MatchesEntries(body, entries) {
			return false, nil
		}
		matched = body
		return true, nil
	}
	if err := awsexpect.Poll(ctx, check, timeout, awsexpect.EffectiveInterval(pollInterval)); err != nil {
		if errors.Is(err, awsexpect.ErrWaitTimeout) {
			return nil, &awsexpect.S3TimeoutError{Bucket: e.bucket, Key: e.key, Timeout: timeout}
		}
		return nil, err
	}
	return matched, nil
}

func (e *ObjectExpectation) headInput() *s3.HeadObjectInput {
	return &s3.HeadObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(e.key),
	}
}

// The smithy waiter reports budget exhaustion as an untyped error, so the message
// text is the only available hook to tell it apart from real API failures.
func isWaitExhausted(err error) bool {
	return err != nil && strings.Contains(err.Error(), "exceeded max wait time")
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
