package awsexpect

import (
	"errors"
	"fmt"
	"time"
)

// ErrWaitTimeout is the generic wait-exhausted condition. The per-service error
// types wrap it so callers that don't care which target timed out can catch with
// errors.Is(err, ErrWaitTimeout).
var ErrWaitTimeout = errors.New("wait timed out")

// S3TimeoutError is returned when an S3 object wait exceeds its timeout.
// Bucket, Key and Timeout are assigned as fields so catching code can introspect
// them without parsing the message.
type S3TimeoutError struct {
	Bucket  string
	Key     string
	Timeout time.Duration
	// Message overrides the templated default when set.
	Message string
}

func (e *S3TimeoutError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("timed out after %v waiting for s3://%s/%s", e.Timeout, e.Bucket, e.Key)
}

func (e *S3TimeoutError) Unwrap() error {
	return ErrWaitTimeout
}

// DynamoDBTimeoutError is returned when a DynamoDB item or table wait exceeds its
// timeout. Key is nil for table-level waits.
type DynamoDBTimeoutError struct {
	TableName string
	Key       map[string]any
	Timeout   time.Duration
	// Message overrides the templated default when set.
	Message string
}

func (e *DynamoDBTimeoutError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("timed out after %v waiting for item %v in table %s", e.Timeout, e.Key, e.TableName)
}

func (e *DynamoDBTimeoutError) Unwrap() error {
	return ErrWaitTimeout
}
