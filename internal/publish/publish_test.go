package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/segmentio/kafka-go"

	"github.com/marwinsteiner/trade-accounting/internal/common"
	"github.com/marwinsteiner/trade-accounting/internal/export"
)

func sampleRecord() export.TradeRecord {
	return export.TradeRecord{
		OrderID:      "987654321",
		DateReceived: "2024-03-11T10:15:00-04:00",
		OrderType:    "Market",
		Legs: []export.LegRecord{{
			Action:    "Buy",
			Quantity:  10,
			Symbol:    "MSFT",
			FillPrice: "401.25",
			FillTime:  "2024-03-11T10:15:03-04:00",
		}},
	}
}

func TestDirPublisher(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	p, err := NewDirPublisher(dir, nil)
	if err != nil {
		t.Fatalf("NewDirPublisher() error = %v", err)
	}
	if err := p.Publish(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "trade_987654321.json"))
	if err != nil {
		t.Fatalf("Expected record file, got %v", err)
	}
	var got export.TradeRecord
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.OrderID != "987654321" || got.Legs[0].FillPrice != "401.25" {
		t.Errorf("Unexpected record %+v", got)
	}
	if leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp")); len(leftovers) != 0 {
		t.Errorf("Expected temp files to be gone, got %v", leftovers)
	}
	info, err := os.Stat(filepath.Join(dir, "trade_987654321.json"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("Expected mode 0644, got %v", info.Mode().Perm())
	}
}

func TestDirPublisherConcurrentSameOrder(t *testing.T) {
	dir := t.TempDir()
	p, err := NewDirPublisher(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- p.Publish(context.Background(), sampleRecord())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Publish() error = %v", err)
		}
	}

	b, err := os.ReadFile(filepath.Join(dir, "trade_987654321.json"))
	if err != nil {
		t.Fatal(err)
	}
	var got export.TradeRecord
	if err := json.Unmarshal(b, &got); err != nil {
		t.Errorf("Expected a complete record, got %v", err)
	}
	if leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp")); len(leftovers) != 0 {
		t.Errorf("Expected no temp files, got %v", leftovers)
	}
}

func TestDirPublisherRejectsMissingOrderID(t *testing.T) {
	p, err := NewDirPublisher(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	rec := sampleRecord()
	rec.OrderID = ""
	if err := p.Publish(context.Background(), rec); err == nil {
		t.Error("Expected error for empty order id")
	}
}

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Publisher(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
	}{
		{"trades", "trades/trade_987654321.json"},
		{"trades/2024/", "trades/2024/trade_987654321.json"},
		{"", "trade_987654321.json"},
	}
	for _, tt := range tests {
		putter := &fakePutter{}
		p := NewS3Publisher(putter, "acct", tt.prefix, nil)
		if err := p.Publish(context.Background(), sampleRecord()); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if got := aws.ToString(putter.input.Key); got != tt.key {
			t.Errorf("Expected key %s, got %s", tt.key, got)
		}
		if aws.ToString(putter.input.Bucket) != "acct" {
			t.Errorf("Expected bucket acct, got %s", aws.ToString(putter.input.Bucket))
		}
		if aws.ToInt64(putter.input.ContentLength) != int64(len(putter.body)) {
			t.Errorf("Content length %d does not match body %d", aws.ToInt64(putter.input.ContentLength), len(putter.body))
		}
	}
}

func TestS3PublisherError(t *testing.T) {
	p := NewS3Publisher(&fakePutter{err: errors.New("denied")}, "acct", "trades", nil)
	if err := p.Publish(context.Background(), sampleRecord()); err == nil {
		t.Error("Expected put error to surface")
	}
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, nil)
	if err := p.Publish(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "987654321" {
		t.Errorf("Expected key 987654321, got %s", w.msgs[0].Key)
	}
	var got export.TradeRecord
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil || got.OrderType != "Market" {
		t.Errorf("Unexpected message value %s (%v)", w.msgs[0].Value, err)
	}
	if err := p.Close(); err != nil || !w.closed {
		t.Error("Expected writer to be closed")
	}
}

func TestNewKafkaWriterRequiresBrokers(t *testing.T) {
	if _, err := NewKafkaWriter(nil, "trades"); err == nil {
		t.Error("Expected error without brokers")
	}
	if _, err := NewKafkaWriter([]string{"localhost:9092"}, ""); err == nil {
		t.Error("Expected error without topic")
	}
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, export.TradeRecord) error { return f.err }

func TestMultiJoinsErrors(t *testing.T) {
	errA := errors.New("a down")
	errB := errors.New("b down")
	w := &fakeWriter{}
	m := Multi{failingPublisher{errA}, nil, NewKafkaPublisher(w, nil), failingPublisher{errB}}

	err := m.Publish(context.Background(), sampleRecord())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Expected both errors joined, got %v", err)
	}
	if len(w.msgs) != 1 {
		t.Errorf("Expected healthy publisher to still receive the record, got %d", len(w.msgs))
	}
	if err := (Multi{}).Publish(context.Background(), sampleRecord()); err != nil {
		t.Errorf("Expected nil for empty fan-out, got %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := common.DefaultConfig()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "records")
	cfg.Kafka.Brokers = []string{"localhost:9092"}

	pubs, closeFn, err := FromConfig(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	if len(pubs) != 2 {
		t.Fatalf("Expected dir and kafka publishers, got %d", len(pubs))
	}
	if _, ok := pubs[0].(*DirPublisher); !ok {
		t.Errorf("Expected first publisher to be the directory, got %T", pubs[0])
	}
	if _, ok := pubs[1].(*KafkaPublisher); !ok {
		t.Errorf("Expected second publisher to be kafka, got %T", pubs[1])
	}
	if err := closeFn(); err != nil {
		t.Errorf("close error = %v", err)
	}

	cfg.Output.Dir = ""
	cfg.Kafka.Brokers = nil
	pubs, _, err = FromConfig(context.Background(), cfg, nil)
	if err != nil || len(pubs) != 0 {
		t.Errorf("Expected no publishers, got %d (%v)", len(pubs), err)
	}
}
