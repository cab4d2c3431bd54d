package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rzpsarthak13/thinorm/internal/core"
	"github.com/rzpsarthak13/thinorm/internal/logging"
)

func init() {
	RegisterFactory(&dynamoDBFactory{})
}

type dynamoDBFactory struct{}

func (f *dynamoDBFactory) Type() string { return "dynamodb" }

func (f *dynamoDBFactory) Validate(cfg Config) error {
	if cfg.Region == "" {
		return errors.New("region is required")
	}
	if cfg.TableName == "" {
		return errors.New("table name is required")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return errors.New("access key id and secret access key must be set together")
	}
	return nil
}

func (f *dynamoDBFactory) Create(ctx context.Context, cfg Config) (core.ChangePublisher, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Override credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	var opts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		// Custom endpoint (e.g., for LocalStack)
		opts = append(opts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	client := dynamodb.NewFromConfig(awsCfg, opts...)

	descCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := client.DescribeTable(descCtx, &dynamodb.DescribeTableInput{
		TableName: aws.String(cfg.TableName),
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", cfg.TableName, err)
	}

	return NewDynamoDBPublisher(client, cfg.TableName, cfg.TTL), nil
}

// ItemPutter is the subset of *dynamodb.Client used by the publisher.
type ItemPutter interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoDBPublisher stores each event as one item keyed by event id.
type DynamoDBPublisher struct {
	client    ItemPutter
	tableName string
	ttl       time.Duration
	mu        sync.RWMutex
	closed    bool
}

// NewDynamoDBPublisher creates a publisher writing to tableName. When ttl > 0
// items carry a "ttl" attribute (epoch seconds) for DynamoDB expiry.
func NewDynamoDBPublisher(client ItemPutter, tableName string, ttl time.Duration) *DynamoDBPublisher {
	return &DynamoDBPublisher{client: client, tableName: tableName, ttl: ttl}
}

// Item builds the DynamoDB item for an event.
func (p *DynamoDBPublisher) Item(event *core.ChangeEvent) (map[string]types.AttributeValue, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal change event: %w", err)
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	item := map[string]types.AttributeValue{
		"id":            &types.AttributeValueMemberS{Value: event.ID},
		"operation":     &types.AttributeValueMemberS{Value: string(event.Operation)},
		"rows_affected": &types.AttributeValueMemberN{Value: strconv.FormatInt(event.RowsAffected, 10)},
		"statement":     &types.AttributeValueMemberS{Value: event.Statement},
		"created_at":    &types.AttributeValueMemberS{Value: ts.UTC().Format(time.RFC3339Nano)},
		"payload":       &types.AttributeValueMemberB{Value: payload},
	}
	if event.Table != "" {
		item["table"] = &types.AttributeValueMemberS{Value: event.Table}
	}
	if event.Key != nil {
		item["record_key"] = &types.AttributeValueMemberS{Value: fmt.Sprint(event.Key)}
	}
	if p.ttl > 0 {
		item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(ts.Add(p.ttl).Unix(), 10)}
	}
	return item, nil
}

// Publish writes the event with PutItem.
func (p *DynamoDBPublisher) Publish(ctx context.Context, event *core.ChangeEvent) error {
	if err := checkEvent(event); err != nil {
		return err
	}
	if event.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidEvent)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	item, err := p.Item(event)
	if err != nil {
		return err
	}
	if _, err := p.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(p.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("failed to put event %s: %w", event.ID, err)
	}

	logging.For("changefeed").Debug("event stored in dynamodb",
		"id", event.ID, "dynamo_table", p.tableName, "table", event.Table)
	return nil
}

// Close marks the publisher closed. The AWS client holds no resources to release.
func (p *DynamoDBPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
