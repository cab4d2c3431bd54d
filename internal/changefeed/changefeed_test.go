package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/redis/go-redis/v9"
	"github.com/rzpsarthak13/thinorm/internal/core"
	"github.com/segmentio/kafka-go"
)

func event(table string, op core.OperationType) *core.ChangeEvent {
	return NewEvent(table, op, int64(7), 1, "UPDATE person SET age = 21 WHERE id = 7")
}

func TestRegisteredTypes(t *testing.T) {
	want := []string{"dynamodb", "kafka", "memory", "redis"}
	got := RegisteredTypes()
	if len(got) != len(want) {
		t.Fatalf("types=%v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("types=%v want %v", got, want)
		}
	}
	if IsTypeRegistered("rabbitmq") {
		t.Fatalf("rabbitmq should not be registered")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"none", Config{Type: "none"}, false},
		{"empty", Config{}, false},
		{"unknown", Config{Type: "rabbitmq"}, true},
		{"memory", Config{Type: "memory", BufferSize: 10}, false},
		{"redis without endpoints", Config{Type: "redis"}, true},
		{"redis", Config{Type: "redis", Endpoints: []string{"localhost:6379"}}, false},
		{"kafka without topic", Config{Type: "kafka", Brokers: []string{"localhost:9092"}}, true},
		{"kafka bad acks", Config{Type: "kafka", Brokers: []string{"b:9092"}, Topic: "t", RequiredAcks: 2}, true},
		{"kafka", Config{Type: "kafka", Brokers: []string{"b:9092"}, Topic: "t", RequiredAcks: -1}, false},
		{"dynamodb without table", Config{Type: "dynamodb", Region: "us-east-1"}, true},
		{"dynamodb half credentials", Config{Type: "dynamodb", Region: "us-east-1", TableName: "t", AccessKeyID: "a"}, true},
		{"dynamodb", Config{Type: "dynamodb", Region: "us-east-1", TableName: "t"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate err=%v wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestCreate_Memory(t *testing.T) {
	p, err := Create(context.Background(), Config{Type: "memory", BufferSize: 2})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer p.Close()
	if _, ok := p.(*MemoryPublisher); !ok {
		t.Fatalf("publisher=%T want *MemoryPublisher", p)
	}

	if _, err := Create(context.Background(), Config{Type: "none"}); err == nil {
		t.Fatalf("expected error for disabled config")
	}
}

func TestNewEvent(t *testing.T) {
	a := event("person", core.OperationUpdate)
	b := event("person", core.OperationUpdate)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("ids not unique: %q %q", a.ID, b.ID)
	}
	if a.Timestamp.IsZero() || a.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp=%v", a.Timestamp)
	}
}

func TestMemoryPublisher(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPublisher(2)

	if err := p.Publish(ctx, nil); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("nil event err=%v", err)
	}
	if err := p.Publish(ctx, &core.ChangeEvent{}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("empty event err=%v", err)
	}

	first := event("person", core.OperationInsert)
	if err := p.Publish(ctx, first); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.Publish(ctx, event("person", core.OperationDelete)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.Publish(ctx, event("person", core.OperationDelete)); !errors.Is(err, ErrBufferFull) {
		t.Fatalf("full buffer err=%v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("Len=%d", p.Len())
	}

	got := p.Drain()
	if len(got) != 2 || got[0] != first {
		t.Fatalf("Drain=%v", got)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := p.Publish(ctx, first); !errors.Is(err, ErrPublisherClosed) {
		t.Fatalf("closed err=%v", err)
	}
	if _, ok := <-p.Events(); ok {
		t.Fatalf("events channel should be closed")
	}
}

// --- Redis ---

type fakeRedis struct {
	mu     sync.Mutex
	lists  map[string][][]byte
	err    error
	closed bool
}

func newFakeRedis() *fakeRedis { return &fakeRedis{lists: make(map[string][][]byte)} }

func (f *fakeRedis) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx, "rpush", key)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	for _, v := range values {
		f.lists[key] = append(f.lists[key], v.([]byte))
	}
	cmd.SetVal(int64(len(f.lists[key])))
	return cmd
}

func (f *fakeRedis) LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStatusCmd(ctx, "ltrim", key, start, stop)
	list := f.lists[key]
	if start < 0 && int64(len(list)) > -start {
		f.lists[key] = list[int64(len(list))+start:]
	}
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	p := NewRedisPublisher(fake, "", 2)

	for i := 0; i < 3; i++ {
		if err := p.Publish(ctx, event("person", core.OperationInsert)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	raw := NewEvent("", core.OperationExec, nil, 3, "DELETE FROM person")
	if err := p.Publish(ctx, raw); err != nil {
		t.Fatalf("Publish raw: %v", err)
	}

	if got := len(fake.lists["thinorm:changes:person"]); got != 2 {
		t.Fatalf("table list len=%d want 2 (trimmed)", got)
	}
	global := fake.lists[p.GlobalKey()]
	if len(global) != 2 {
		t.Fatalf("global list len=%d want 2", len(global))
	}
	var last core.ChangeEvent
	if err := json.Unmarshal(global[1], &last); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if last.ID != raw.ID || last.Operation != core.OperationExec || last.RowsAffected != 3 {
		t.Fatalf("last=%+v", last)
	}

	fake.err = errors.New("READONLY")
	if err := p.Publish(ctx, raw); err == nil {
		t.Fatalf("expected push error")
	}

	if err := p.Close(); err != nil || !fake.closed {
		t.Fatalf("Close err=%v closed=%v", err, fake.closed)
	}
	if err := p.Publish(ctx, raw); !errors.Is(err, ErrPublisherClosed) {
		t.Fatalf("closed err=%v", err)
	}
}

// --- Kafka ---

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	ctx := context.Background()
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, "thinorm.changes")

	ev := event("person", core.OperationUpdate)
	if err := p.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages=%d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "person" || !msg.Time.Equal(ev.Timestamp) {
		t.Fatalf("msg key=%q time=%v", msg.Key, msg.Time)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["operation"] != "UPDATE" || headers["event_id"] != ev.ID {
		t.Fatalf("headers=%v", headers)
	}

	w.err = errors.New("leader not available")
	if err := p.Publish(ctx, ev); !errors.Is(err, w.err) {
		t.Fatalf("err=%v", err)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("Close err=%v closed=%v", err, w.closed)
	}
	if err := p.Publish(ctx, ev); !errors.Is(err, ErrPublisherClosed) {
		t.Fatalf("closed err=%v", err)
	}
}

// --- DynamoDB ---

type fakeDynamo struct {
	mu   sync.Mutex
	puts []*dynamodb.PutItemInput
	err  error
}

func (d *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	d.puts = append(d.puts, params)
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoDBPublisher(t *testing.T) {
	ctx := context.Background()
	d := &fakeDynamo{}
	p := NewDynamoDBPublisher(d, "thinorm-changes", time.Hour)

	ev := event("person", core.OperationDelete)
	if err := p.Publish(ctx, ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(d.puts) != 1 {
		t.Fatalf("puts=%d", len(d.puts))
	}
	in := d.puts[0]
	if aws.ToString(in.TableName) != "thinorm-changes" {
		t.Fatalf("table=%q", aws.ToString(in.TableName))
	}
	if id := in.Item["id"].(*types.AttributeValueMemberS).Value; id != ev.ID {
		t.Fatalf("id=%q", id)
	}
	if key := in.Item["record_key"].(*types.AttributeValueMemberS).Value; key != "7" {
		t.Fatalf("record_key=%q", key)
	}
	if n := in.Item["rows_affected"].(*types.AttributeValueMemberN).Value; n != "1" {
		t.Fatalf("rows_affected=%q", n)
	}
	if _, ok := in.Item["ttl"]; !ok {
		t.Fatalf("ttl attribute missing")
	}

	if err := p.Publish(ctx, &core.ChangeEvent{Operation: core.OperationExec}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("missing id err=%v", err)
	}

	d.err = errors.New("ProvisionedThroughputExceededException")
	if err := p.Publish(ctx, ev); !errors.Is(err, d.err) {
		t.Fatalf("err=%v", err)
	}
}

// --- FanOut ---

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, *core.ChangeEvent) error { return f.err }
func (f failingPublisher) Close() error                                     { return f.err }

func TestFanOut(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryPublisher(4)
	b := NewMemoryPublisher(4)
	f := NewFanOut(a, nil, b)
	if f.Len() != 2 {
		t.Fatalf("Len=%d", f.Len())
	}

	if err := f.Publish(ctx, event("person", core.OperationInsert)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if a.Len() != 1 || b.Len() != 1 {
		t.Fatalf("a=%d b=%d", a.Len(), b.Len())
	}

	boom := errors.New("boom")
	f = NewFanOut(a, failingPublisher{err: boom})
	if err := f.Publish(ctx, event("person", core.OperationInsert)); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if a.Len() != 2 {
		t.Fatalf("healthy publisher skipped: a=%d", a.Len())
	}
	if err := f.Close(); !errors.Is(err, boom) {
		t.Fatalf("Close err=%v", err)
	}
}
