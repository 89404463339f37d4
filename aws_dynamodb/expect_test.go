package aws_dynamodb

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/SharedCode/awsexpect"
)

// fakeDynamoClient implements Client against an in-memory table keyed by the pk
// attribute, so waits can be exercised without a network.
type fakeDynamoClient struct {
	mu        sync.Mutex
	tableName string
	items     map[string]map[string]types.AttributeValue
	getErr    error
	scanErr   error
	getCalls  int
	scanCalls int
}

func newFakeDynamoClient() *fakeDynamoClient {
	return &fakeDynamoClient{
		tableName: "test-" + uuid.NewString()[:12],
		items:     map[string]map[string]types.AttributeValue{},
	}
}

func (f *fakeDynamoClient) putString(pk string, attrs map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item := map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
	}
	for k, v := range attrs {
		item[k] = &types.AttributeValueMemberS{Value: v}
	}
	f.items[pk] = item
}

func (f *fakeDynamoClient) remove(pk string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, pk)
}

func pkOf(key map[string]types.AttributeValue) string {
	if s, ok := key["pk"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamoClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if aws.ToString(params.TableName) != f.tableName {
		return nil, fmt.Errorf("unexpected table %q", aws.ToString(params.TableName))
	}
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &dynamodb.GetItemOutput{Item: f.items[pkOf(params.Key)]}, nil
}

func (f *fakeDynamoClient) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanCalls++
	if aws.ToString(params.TableName) != f.tableName {
		return nil, fmt.Errorf("unexpected table %q", aws.ToString(params.TableName))
	}
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	var count int32
	if len(f.items) > 0 {
		count = 1
	}
	return &dynamodb.ScanOutput{Count: count}, nil
}

func TestToExist_ReturnsItemWhenPresent(t *testing.T) {
	client := newFakeDynamoClient()
	client.putString("user-1", map[string]string{"name": "Alice"})

	item, err := Expect(client, client.tableName).ToExist(context.Background(), map[string]any{"pk": "user-1"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if item["pk"] != "user-1" || item["name"] != "Alice" {
		t.Fatalf("unexpected item: %v", item)
	}
}

func TestToExist_ReturnsWhenItemAppearsMidWait(t *testing.T) {
	client := newFakeDynamoClient()
	timer := time.AfterFunc(1500*time.Millisecond, func() {
		client.putString("delayed", map[string]string{"status": "ready"})
	})
	defer timer.Stop()

	start := time.Now()
	item, err := Expect(client, client.tableName).ToExistExt(
		context.Background(), map[string]any{"pk": "delayed"}, 5*time.Second, time.Second, nil)
	if err != nil {
		t.Fatalf("expected success once the item appeared, got %v", err)
	}
	if item["status"] != "ready" {
		t.Fatalf("unexpected item: %v", item)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Fatalf("took too long: %v", elapsed)
	}
}

func TestToExist_TimesOutWhenItemMissing(t *testing.T) {
	client := newFakeDynamoClient()
	key := map[string]any{"pk": "ghost"}

	start := time.Now()
	_, err := Expect(client, client.tableName).ToExistExt(context.Background(), key, 2*time.Second, time.Second, nil)
	elapsed := time.Since(start)

	var te *awsexpect.DynamoDBTimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected DynamoDBTimeoutError, got %T: %v", err, err)
	}
	if te.TableName != client.tableName || !reflect.DeepEqual(te.Key, key) || te.Timeout != 2*time.Second {
		t.Fatalf("unexpected error context: %+v", te)
	}
	if !errors.Is(err, awsexpect.ErrWaitTimeout) {
		t.Fatalf("expected errors.Is(err, ErrWaitTimeout) to hold")
	}
	if elapsed < 2*time.Second {
		t.Fatalf("timed out too early: %v", elapsed)
	}
}

func TestToExist_WaitsForEntriesToMatch(t *testing.T) {
	client := newFakeDynamoClient()
	client.putString("order-1", map[string]string{"status": "pending"})
	timer := time.AfterFunc(1500*time.Millisecond, func() {
		client.putString("order-1", map[string]string{"status": "shipped"})
	})
	defer timer.Stop()

	item, err := Expect(client, client.tableName).ToExistExt(
		context.Background(), map[string]any{"pk": "order-1"},
		5*time.Second, time.Second, map[string]any{"status": "shipped"})
	if err != nil {
		t.Fatalf("expected match after the update, got %v", err)
	}
	if item["status"] != "shipped" {
		t.Fatalf("unexpected item: %v", item)
	}
}

func TestToExist_TimesOutOnPersistentEntryMismatch(t *testing.T) {
	client := newFakeDynamoClient()
	client.putString("order-1", map[string]string{"status": "pending"})

	_, err := Expect(client, client.tableName).ToExistExt(
		context.Background(), map[string]any{"pk": "order-1"},
		2*time.Second, time.Second, map[string]any{"status": "delivered"})

	var te *awsexpect.DynamoDBTimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected DynamoDBTimeoutError, got %T: %v", err, err)
	}
}

func TestToExist_PropagatesLookupError(t *testing.T) {
	client := newFakeDynamoClient()
	client.getErr = &smithy.GenericAPIError{Code: "ValidationException", Message: "bad key"}

	_, err := Expect(client, client.tableName).ToExistExt(
		context.Background(), map[string]any{"pk": "x"}, 5*time.Second, time.Second, nil)

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "ValidationException" {
		t.Fatalf("expected the lookup error unchanged, got %v", err)
	}
	if errors.Is(err, awsexpect.ErrWaitTimeout) {
		t.Fatalf("lookup error must not be converted to a timeout: %v", err)
	}
	if client.getCalls != 1 {
		t.Fatalf("expected no retry after a lookup failure, got %d reads", client.getCalls)
	}
}

func TestToNotExist_ReturnsImmediatelyWhenAbsent(t *testing.T) {
	client := newFakeDynamoClient()

	start := time.Now()
	err := Expect(client, client.tableName).ToNotExistExt(
		context.Background(), map[string]any{"pk": "never"}, 5*time.Second, time.Second)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("expected first-read success without sleeping, took %v", elapsed)
	}
	if client.getCalls != 1 {
		t.Fatalf("expected a single read, got %d", client.getCalls)
	}
}

func TestToNotExist_ReturnsAfterItemRemoved(t *testing.T) {
	client := newFakeDynamoClient()
	client.putString("user-1", nil)
	timer := time.AfterFunc(1500*time.Millisecond, func() {
		client.remove("user-1")
	})
	defer timer.Stop()

	err := Expect(client, client.tableName).ToNotExistExt(
		context.Background(), map[string]any{"pk": "user-1"}, 5*time.Second, time.Second)
	if err != nil {
		t.Fatalf("expected success once the item was removed, got %v", err)
	}
}

func TestToNotExist_TimesOutWhileItemRemains(t *testing.T) {
	client := newFakeDynamoClient()
	client.putString("sticky", nil)
	key := map[string]any{"pk": "sticky"}

	err := Expect(client, client.tableName).ToNotExistExt(context.Background(), key, 2*time.Second, time.Second)

	var te *awsexpect.DynamoDBTimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected DynamoDBTimeoutError, got %T: %v", err, err)
	}
	if !reflect.DeepEqual(te.Key, key) {
		t.Fatalf("unexpected error context: %+v", te)
	}
}

func TestToBeEmpty_SucceedsOnEmptyTable(t *testing.T) {
	client := newFakeDynamoClient()

	err := Expect(client, client.tableName).ToBeEmptyExt(context.Background(), 5*time.Second, time.Second)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if client.scanCalls != 1 {
		t.Fatalf("expected a single scan, got %d", client.scanCalls)
	}
}

func TestToBeEmpty_TimesOutWithTableMessage(t *testing.T) {
	client := newFakeDynamoClient()
	client.putString("lingering", nil)

	err := Expect(client, client.tableName).ToBeEmptyExt(context.Background(), 2*time.Second, time.Second)

	var te *awsexpect.DynamoDBTimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected DynamoDBTimeoutError, got %T: %v", err, err)
	}
	if te.Key != nil {
		t.Fatalf("table-level wait should carry no key: %+v", te)
	}
	want := fmt.Sprintf("timed out after 2s waiting for table %s to be empty", client.tableName)
	if te.Error() != want {
		t.Fatalf("unexpected message: %q, want %q", te.Error(), want)
	}
}

func TestToNotBeEmpty_ReturnsWhenItemAppears(t *testing.T) {
	client := newFakeDynamoClient()
	timer := time.AfterFunc(1500*time.Millisecond, func() {
		client.putString("first", nil)
	})
	defer timer.Stop()

	err := Expect(client, client.tableName).ToNotBeEmptyExt(context.Background(), 5*time.Second, time.Second)
	if err != nil {
		t.Fatalf("expected success once an item appeared, got %v", err)
	}
}

func TestToNotBeEmpty_PropagatesScanError(t *testing.T) {
	client := newFakeDynamoClient()
	client.scanErr = &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "no"}

	err := Expect(client, client.tableName).ToNotBeEmptyExt(context.Background(), 5*time.Second, time.Second)

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "AccessDeniedException" {
		t.Fatalf("expected the scan error unchanged, got %v", err)
	}
	if client.scanCalls != 1 {
		t.Fatalf("expected no retry after a scan failure, got %d scans", client.scanCalls)
	}
}
