package events

import (
	"context"
	"sync"
	"time"

	"github.com/Skotchmaster/farmconnect/pkg/logging"
)

const publishTimeout = 5 * time.Second

// Emit publishes without failing the caller. The request context may already
// be cancelled by the time the broker answers, so only its values are kept.
func Emit(ctx context.Context, p Publisher, topic, key string, ev Event) {
	if p == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.PublishEvent(pubCtx, topic, key, ev); err != nil {
		logging.FromContext(ctx).Warn("publish_event_error", "topic", topic, "type", ev.Type, "key", key, "error", err)
	}
}

type Published struct {
	Topic string
	Key   string
	Event Event
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Published
	Err    error
}

func (r *Recorder) PublishEvent(_ context.Context, topic, key string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	ev, _ := event.(Event)
	r.events = append(r.events, Published{Topic: topic, Key: key, Event: ev})
	return nil
}

func (r *Recorder) Events() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Published, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) Types(topic string) []string {
	var out []string
	for _, p := range r.Events() {
		if p.Topic == topic {
			out = append(out, p.Event.Type)
		}
	}
	return out
}
