package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Skotchmaster/farmconnect/pkg/metrics"
)

const (
	mongoQueueSize = 4096
	mongoBatchSize = 50
	mongoFlushTick = 2 * time.Second
)

type mongoRecord struct {
	Time      time.Time `bson:"time"`
	Level     string    `bson:"level"`
	Msg       string    `bson:"msg"`
	RequestID string    `bson:"request_id,omitempty"`
	Attrs     bson.M    `bson:"attrs,omitempty"`
}

// batchWriter is the part of *mongo.Collection the sink writes through.
type batchWriter interface {
	InsertMany(ctx context.Context, docs []any, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

type mongoSink struct {
	col    batchWriter
	client *mongo.Client
	queue  chan mongoRecord
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	// errOut gets one line when inserts start failing and one when they
	// recover; the records in between are only counted.
	errOut  io.Writer
	failing bool
}

func newMongoSink(col batchWriter, client *mongo.Client, errOut io.Writer) *mongoSink {
	s := &mongoSink{
		col:    col,
		client: client,
		queue:  make(chan mongoRecord, mongoQueueSize),
		done:   make(chan struct{}),
		errOut: errOut,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// MongoHandler ships records to a MongoDB collection in the background.
// Records are dropped when the queue is full.
type MongoHandler struct {
	sink   *mongoSink
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

func NewMongoHandler(ctx context.Context, uri, db, collection string, level slog.Leveler) (*MongoHandler, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(uri).
		SetConnectTimeout(5*time.Second).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(10))
	if err != nil {
		return nil, fmt.Errorf("mongo log sink: connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo log sink: ping: %w", err)
	}

	col := client.Database(db).Collection(collection)
	if _, err := col.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "time", Value: -1}},
	}); err != nil {
		fmt.Fprintf(os.Stderr, "mongo log sink: create time index on %s.%s: %v\n", db, collection, err)
	}

	return &MongoHandler{sink: newMongoSink(col, client, os.Stderr), level: level}, nil
}

func (h *MongoHandler) Enabled(_ context.Context, l slog.Level) bool {
	if h.level == nil {
		return l >= slog.LevelInfo
	}
	return l >= h.level.Level()
}

func (h *MongoHandler) Handle(_ context.Context, r slog.Record) error {
	rec := mongoRecord{
		Time:  r.Time.UTC(),
		Level: r.Level.String(),
		Msg:   r.Message,
		Attrs: bson.M{},
	}
	add := func(a slog.Attr, prefix string) {
		if a.Key == "request_id" {
			rec.RequestID = a.Value.String()
			return
		}
		rec.Attrs[prefix+a.Key] = a.Value.Resolve().Any()
	}
	for _, a := range h.attrs {
		add(a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		add(a, h.prefix)
		return true
	})

	select {
	case h.sink.queue <- rec:
	default:
		metrics.LogRecordsDropped.WithLabelValues("queue_full").Inc()
	}
	return nil
}

func (h *MongoHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *MongoHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = strings.TrimPrefix(h.prefix+name+".", ".")
	return &next
}

// Close flushes queued records and disconnects.
func (h *MongoHandler) Close(ctx context.Context) error {
	h.sink.once.Do(func() { close(h.sink.done) })
	h.sink.wg.Wait()
	if h.sink.client == nil {
		return nil
	}
	return h.sink.client.Disconnect(ctx)
}

func (s *mongoSink) insert(batch []any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.col.InsertMany(ctx, batch)
	switch {
	case err != nil:
		metrics.LogRecordsDropped.WithLabelValues("insert_error").Add(float64(len(batch)))
		if !s.failing {
			s.failing = true
			fmt.Fprintf(s.errOut, "mongo log sink: insert failed, dropping records until it recovers: %v\n", err)
		}
	case s.failing:
		s.failing = false
		fmt.Fprintln(s.errOut, "mongo log sink: inserts recovered")
	}
}

func (s *mongoSink) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(mongoFlushTick)
	defer ticker.Stop()

	batch := make([]any, 0, mongoBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.insert(batch)
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-s.queue:
			batch = append(batch, rec)
			if len(batch) >= mongoBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			for {
				select {
				case rec := <-s.queue:
					batch = append(batch, rec)
				default:
					flush()
					return
				}
			}
		}
	}
}
