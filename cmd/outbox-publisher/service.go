package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/consultly-backend/pkg/config"
	"github.com/angelmondragon/consultly-backend/pkg/db/models"
	"github.com/angelmondragon/consultly-backend/pkg/enums"
	"github.com/angelmondragon/consultly-backend/pkg/logger"
	"github.com/angelmondragon/consultly-backend/pkg/metrics"
	"github.com/angelmondragon/consultly-backend/pkg/outbox/registry"
)

const (
	fallbackBatchSize   = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	publishTimeout      = 15 * time.Second
	idleBackoffCap      = 10 * time.Second
	jitterWindow        = 250 * time.Millisecond
)

type store interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type eventQueue interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterSink interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventRouter interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Settings         config.OutboxConfig
	Logger           *logger.Logger
	DB               store
	PubSub           topicSource
	Queue            eventQueue
	Router           eventRouter
	DeadLetters      deadLetterSink
	PublisherFactory publisherFactory
	Metrics          *metrics.OutboxMetrics
}

// Service drains the outbox table into Pub/Sub. Events for one aggregate
// share an ordering key so subscribers see a reservation item's lifecycle
// in commit order.
type Service struct {
	logg        *logger.Logger
	db          store
	queue       eventQueue
	topics      topicSource
	router      eventRouter
	deadLetters deadLetterSink
	metrics     *metrics.OutboxMetrics
	publisherOf publisherFactory
	batchSize   int
	maxAttempts int
	poll        time.Duration
	now         func() time.Time

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

func NewService(params ServiceParams) (*Service, error) {
	var missing error
	for name, ok := range map[string]bool{
		"logger":            params.Logger != nil,
		"database client":   params.DB != nil,
		"pubsub client":     params.PubSub != nil,
		"outbox queue":      params.Queue != nil,
		"event router":      params.Router != nil,
		"dead letter store": params.DeadLetters != nil,
	} {
		if !ok {
			missing = multierr.Append(missing, fmt.Errorf("%s is required", name))
		}
	}
	if missing != nil {
		return nil, missing
	}

	s := &Service{
		logg:        params.Logger,
		db:          params.DB,
		queue:       params.Queue,
		topics:      params.PubSub,
		router:      params.Router,
		deadLetters: params.DeadLetters,
		metrics:     params.Metrics,
		publisherOf: params.PublisherFactory,
		batchSize:   orDefault(params.Settings.BatchSize, fallbackBatchSize),
		maxAttempts: orDefault(params.Settings.MaxAttempts, fallbackMaxAttempts),
		poll:        fallbackPoll,
		now:         time.Now,
		publishers:  map[string]*gcppubsub.Publisher{},
	}
	if ms := params.Settings.PollIntervalMS; ms > 0 {
		s.poll = time.Duration(ms) * time.Millisecond
	}
	if s.publisherOf == nil {
		s.publisherOf = s.orderedPublisher
	}
	return s, nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// orderedPublisher keeps one ordered publisher per topic for the life of the
// service.
func (s *Service) orderedPublisher(topic string) publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.publishers[topic]
	if !ok {
		if p = s.topics.Publisher(topic); p == nil {
			return nil
		}
		p.EnableMessageOrdering = true
		s.publishers[topic] = p
	}
	return &gcpPublisher{Publisher: p}
}

// Stop flushes and releases every cached publisher.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, p := range s.publishers {
		p.Stop()
		delete(s.publishers, topic)
	}
}

func (s *Service) ready(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": s.db.Ping,
		"pubsub":   s.topics.Ping,
	} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, name+" unreachable at startup", err)
			return fmt.Errorf("%s ping: %w", name, err)
		}
	}
	return nil
}

// Run polls until ctx ends. Empty polls wait one interval; failed batches
// back off exponentially up to idleBackoffCap.
func (s *Service) Run(ctx context.Context) error {
	defer s.Stop()
	if err := s.ready(ctx); err != nil {
		return err
	}

	wait := s.poll
	for ctx.Err() == nil {
		claimed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch rolled back", err)
			wait = min(2*wait, idleBackoffCap)
		case claimed:
			wait = s.poll
			continue
		default:
			wait = s.poll
		}
		if err := pause(ctx, wait+rand.N(jitterWindow)); err != nil {
			break
		}
	}
	s.logg.Info(ctx, "outbox publisher context canceled")
	return ctx.Err()
}

// delivery is one claimed row on its way through a batch.
type delivery struct {
	event      models.OutboxEvent
	resolved   *registry.ResolvedEvent
	routeErr   error
	pending    publishResult
	publishErr error
}

func (d *delivery) fields(reason enums.OutboxDLQErrorReason) map[string]any {
	f := map[string]any{
		"outbox_id":      d.event.ID.String(),
		"event_type":     d.event.EventType,
		"aggregate_type": d.event.AggregateType,
		"aggregate_id":   d.event.AggregateID.String(),
		"attempt_count":  d.event.AttemptCount,
	}
	if d.resolved != nil {
		f["event_id"] = d.resolved.Envelope.EventID
		f["topic"] = d.resolved.Descriptor.Topic
	}
	if reason != "" {
		f["error_reason"] = reason
	}
	return f
}

// processBatch claims unpublished rows and settles them in the claiming
// transaction. Every message is handed to the Pub/Sub client before any
// result is awaited, so a batch costs one round trip rather than one per row.
// One bad row never blocks the rest of the batch.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	claimed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.queue.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		claimed = len(rows) > 0

		sendCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		batch := make([]*delivery, len(rows))
		for i, row := range rows {
			batch[i] = s.dispatch(sendCtx, row)
		}
		for _, d := range batch {
			if d.pending != nil {
				_, d.publishErr = d.pending.Get(sendCtx)
			}
			if err := s.settle(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func (s *Service) dispatch(ctx context.Context, row models.OutboxEvent) *delivery {
	d := &delivery{event: row}
	d.resolved, d.routeErr = s.router.Resolve(row)
	if d.routeErr != nil {
		return d
	}

	topic := d.resolved.Descriptor.Topic
	pub := s.publisherOf(topic)
	if pub == nil {
		d.publishErr = registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
		return d
	}
	if d.pending = pub.Publish(ctx, message(row, d.resolved)); d.pending == nil {
		d.publishErr = registry.NewNonRetryableError(fmt.Errorf("topic %s returned no publish result", topic))
	}
	return d
}

func message(row models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	key := row.AggregateID.String()
	return &gcppubsub.Message{
		Data:        row.Payload,
		OrderingKey: key,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   key,
			"occurred_at":    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, d *delivery) error {
	id := d.event.ID
	if d.routeErr != nil {
		reason := enums.OutboxDLQReasonNonRetryable
		if errors.Is(d.routeErr, registry.ErrUnroutable) {
			reason = enums.OutboxDLQReasonUnroutable
		}
		return s.deadLetter(ctx, tx, d, reason, d.routeErr)
	}

	var nonRetry registry.NonRetryableError
	switch {
	case d.publishErr == nil:
		if err := s.queue.MarkPublishedTx(tx, id); err != nil {
			return fmt.Errorf("mark %s published: %w", id, err)
		}
		s.metrics.IncPublished(string(d.event.EventType))
		s.logg.Info(s.logg.WithFields(ctx, d.fields("")), "outbox event published")
		return nil
	case errors.As(d.publishErr, &nonRetry):
		return s.deadLetter(ctx, tx, d, enums.OutboxDLQReasonNonRetryable, d.publishErr)
	case d.event.AttemptCount+1 >= s.maxAttempts:
		return s.deadLetter(ctx, tx, d, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", d.event.AttemptCount+1, d.publishErr))
	}

	logCtx := s.logg.WithError(s.logg.WithFields(ctx, d.fields("")), d.publishErr)
	s.logg.Warn(logCtx, "outbox publish failed, will retry")
	if err := s.queue.MarkFailedTx(tx, id, d.publishErr); err != nil {
		return fmt.Errorf("mark %s failed: %w", id, err)
	}
	s.metrics.IncRetried(string(d.event.EventType))
	return nil
}

// deadLetter copies the row into the DLQ and retires it from the outbox in
// the same transaction.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, d *delivery, reason enums.OutboxDLQErrorReason, cause error) error {
	logCtx := s.logg.WithError(s.logg.WithFields(ctx, d.fields(reason)), cause)
	s.logg.Warn(logCtx, "outbox event dead-lettered")

	detail := cause.Error()
	row := d.event
	if err := s.deadLetters.InsertTx(tx, models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &detail,
		AttemptCount:  row.AttemptCount,
		FailedAt:      s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("dead-letter %s: %w", row.ID, err)
	}
	if err := s.queue.MarkTerminalTx(tx, row.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("retire %s: %w", row.ID, err)
	}
	s.metrics.IncDeadLettered(string(row.EventType), string(reason))
	return nil
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &gcpPublishResult{
		PublishResult: p.Publisher.Publish(ctx, msg),
		resume:        func() { p.Publisher.ResumePublish(msg.OrderingKey) },
	}
}

// gcpPublishResult resumes the ordering key after a failure; Pub/Sub pauses
// a key on error until told otherwise.
type gcpPublishResult struct {
	*gcppubsub.PublishResult
	resume func()
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	id, err := r.PublishResult.Get(ctx)
	if err != nil {
		r.resume()
	}
	return id, err
}
