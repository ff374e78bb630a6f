package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const (
	TypeJobProgress  = "job.progress"
	TypeJobCompleted = "job.completed"
	TypeJobFailed    = "job.failed"
	TypeBatchItem    = "batch.item"
)

var ErrDropped = errors.New("event dropped: hub is saturated or stopped")

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type JobEvent struct {
	JobID    string `json:"job_id"`
	JobType  string `json:"job_type"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
	Result   any    `json:"result,omitempty"`
}

type BatchItemEvent struct {
	JobID     string `json:"job_id"`
	Index     int    `json:"index"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Total     int    `json:"total"`
}

// Publisher is what producers of events depend on.
type Publisher interface {
	Publish(topic string, ev Event) error
}

func UserTopic(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// Hub fans topic messages out to subscribed channels. All topic bookkeeping
// happens on the Run goroutine.
type Hub struct {
	topics map[string]map[chan []byte]struct{}

	subscribe   chan subscription
	unsubscribe chan subscription
	publish     chan topicMessage
	done        chan struct{}
}

type subscription struct {
	ch    chan []byte
	topic string
}

type topicMessage struct {
	topic string
	msg   []byte
}

func NewHub() *Hub {
	return &Hub{
		topics:      make(map[string]map[chan []byte]struct{}),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		publish:     make(chan topicMessage, 256),
		done:        make(chan struct{}),
	}
}

// Run processes subscriptions and deliveries until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.subscribe:
			subs, ok := h.topics[s.topic]
			if !ok {
				subs = make(map[chan []byte]struct{})
				h.topics[s.topic] = subs
			}
			subs[s.ch] = struct{}{}
		case s := <-h.unsubscribe:
			if subs, ok := h.topics[s.topic]; ok {
				delete(subs, s.ch)
				if len(subs) == 0 {
					delete(h.topics, s.topic)
				}
			}
		case tm := <-h.publish:
			for ch := range h.topics[tm.topic] {
				select {
				case ch <- tm.msg:
				default:
					// slow reader
				}
			}
		}
	}
}

// Publish encodes ev and queues it for topic without blocking.
func (h *Hub) Publish(topic string, ev Event) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	select {
	case <-h.done:
		return ErrDropped
	default:
	}

	select {
	case h.publish <- topicMessage{topic: topic, msg: msg}:
		return nil
	default:
		return ErrDropped
	}
}

// Subscribe registers ch for topic. The caller owns ch and must Unsubscribe
// before closing it.
func (h *Hub) Subscribe(ch chan []byte, topic string) bool {
	select {
	case h.subscribe <- subscription{ch: ch, topic: topic}:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unsubscribe(ch chan []byte, topic string) {
	select {
	case h.unsubscribe <- subscription{ch: ch, topic: topic}:
	case <-h.done:
	}
}
