package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/landscape/pkg/eventstream"
	"github.com/papercomputeco/landscape/pkg/eventstream/kafka"
	"github.com/papercomputeco/landscape/pkg/session"
)

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		writer *fakeWriter
		pub    *kafka.Publisher
		event  *eventstream.SessionEvent
	)

	BeforeEach(func() {
		writer = &fakeWriter{}
		pub = kafka.NewPublisherWithWriter(writer)
		event = &eventstream.SessionEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeSessionFinished,
			EventID:       "evt-1",
			EmittedAt:     time.Unix(1735689600, 0).UTC(),
			SessionID:     "s-1",
			Phase:         session.PhaseDone,
		}
	})

	It("writes JSON keyed by session id", func() {
		Expect(pub.Publish(context.Background(), event)).To(Succeed())
		Expect(writer.messages).To(HaveLen(1))

		msg := writer.messages[0]
		Expect(string(msg.Key)).To(Equal("s-1"))
		Expect(msg.Time).To(Equal(event.EmittedAt))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{Key: "event_type", Value: []byte(eventstream.EventTypeSessionFinished)}))

		var decoded eventstream.SessionEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal("evt-1"))
		Expect(decoded.Phase).To(Equal(session.PhaseDone))
	})

	It("rejects nil events", func() {
		Expect(pub.Publish(context.Background(), nil)).To(MatchError(eventstream.ErrNilSessionEvent))
	})

	It("wraps writer errors", func() {
		writer.err = errors.New("broker unavailable")
		Expect(pub.Publish(context.Background(), event)).To(MatchError(ContainSubstring("broker unavailable")))
	})

	It("closes the writer", func() {
		Expect(pub.Close()).To(Succeed())
		Expect(writer.closed).To(BeTrue())
	})

	It("validates config", func() {
		_, err := kafka.NewPublisher(kafka.Config{Topic: "t"})
		Expect(err).To(HaveOccurred())
		_, err = kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).To(HaveOccurred())

		p, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}, Topic: "landscape.sessions"})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())
	})
})
