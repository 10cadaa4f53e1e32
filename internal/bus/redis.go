package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dkeye/HangHub/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	Prefix      string
	DialTimeout time.Duration
	// Publish retry backoff.
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Redis is a Bus over Redis pub/sub, one channel per room. Publishing goes
// through an outbox that keeps only the newest message per room and is
// drained by a single worker retrying with exponential backoff, so callers
// never wait on the network.
type Redis struct {
	client *redis.Client
	opts   RedisOptions

	mu       sync.RWMutex
	pubsub   *redis.PubSub
	handlers map[string][]Handler

	outMu   sync.Mutex
	pending map[string]Message
	order   []string
	wake    chan struct{}
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Bus = (*Redis)(nil)

// NewRedis connects and pings the backbone. An unreachable backbone is an
// error wrapping ErrBackboneUnavailable.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if opts.Prefix == "" {
		opts.Prefix = "hanghub"
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 100 * time.Millisecond
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = 10 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})
	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis %s: %v", ErrBackboneUnavailable, opts.Addr, err)
	}

	rctx, rcancel := context.WithCancel(context.Background())
	r := &Redis{
		client:   client,
		opts:     opts,
		handlers: make(map[string][]Handler),
		pending:  make(map[string]Message),
		wake:     make(chan struct{}, 1),
		ctx:      rctx,
		cancel:   rcancel,
	}
	r.wg.Add(1)
	go r.drain()
	log.Info().Str("module", "bus.redis").Str("addr", opts.Addr).Msg("connected to backbone")
	return r, nil
}

func (r *Redis) channel(key domain.RoomKey) string {
	return r.opts.Prefix + ":room:" + key.String()
}

// Publish queues msg; a newer message for the same room replaces a queued
// older one. A queued sync request survives replacement.
func (r *Redis) Publish(_ context.Context, msg Message) error {
	ch := r.channel(msg.Room)
	r.outMu.Lock()
	if r.closed {
		r.outMu.Unlock()
		return ErrClosed
	}
	if prev, ok := r.pending[ch]; ok {
		if prev.Seq > msg.Seq {
			msg.Seq, msg.Members = prev.Seq, prev.Members
		}
		if prev.Kind == KindSync {
			msg.Kind = KindSync
		}
	} else {
		r.order = append(r.order, ch)
	}
	r.pending[ch] = msg
	r.outMu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return nil
}

func (r *Redis) next() (string, Message, bool) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	if len(r.order) == 0 {
		return "", Message{}, false
	}
	ch := r.order[0]
	r.order = r.order[1:]
	msg := r.pending[ch]
	delete(r.pending, ch)
	return ch, msg, true
}

func (r *Redis) drain() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			r.flush()
			return
		case <-r.wake:
		}
		for r.ctx.Err() == nil {
			ch, msg, ok := r.next()
			if !ok {
				break
			}
			r.send(ch, msg)
		}
	}
}

func (r *Redis) send(ch string, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "bus.redis").Msg("marshal message")
		return
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialInterval
	b.MaxInterval = r.opts.MaxInterval
	b.MaxElapsedTime = 0

	op := func() error {
		return r.client.Publish(r.ctx, ch, payload).Err()
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("module", "bus.redis").Str("channel", ch).Dur("retry_in", wait).Msg("publish failed")
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, r.ctx), notify); err != nil {
		// Shutting down: leave it for flush unless a newer one is queued.
		r.requeue(ch, msg)
	}
}

func (r *Redis) requeue(ch string, msg Message) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	if _, ok := r.pending[ch]; ok {
		return
	}
	r.pending[ch] = msg
	r.order = append([]string{ch}, r.order...)
}

// flush makes one attempt per queued message on shutdown.
func (r *Redis) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.DialTimeout)
	defer cancel()
	for {
		ch, msg, ok := r.next()
		if !ok {
			return
		}
		payload, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if err := r.client.Publish(ctx, ch, payload).Err(); err != nil {
			log.Warn().Err(err).Str("module", "bus.redis").Str("channel", ch).Msg("final publish failed")
		}
	}
}

func (r *Redis) Subscribe(ctx context.Context, key domain.RoomKey, h Handler) error {
	ch := r.channel(key)
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.handlers[ch], h) {
		return nil
	}
	r.handlers[ch] = append(r.handlers[ch], h)
	if len(r.handlers[ch]) > 1 {
		return nil
	}
	if r.pubsub == nil {
		// The client resubscribes tracked channels after reconnecting.
		r.pubsub = r.client.Subscribe(ctx, ch)
		r.wg.Add(1)
		go r.receive(r.pubsub.Channel())
		return nil
	}
	if err := r.pubsub.Subscribe(ctx, ch); err != nil {
		return fmt.Errorf("subscribe %s: %w", ch, err)
	}
	return nil
}

func (r *Redis) Unsubscribe(ctx context.Context, key domain.RoomKey, h Handler) error {
	ch := r.channel(key)
	r.mu.Lock()
	defer r.mu.Unlock()
	hs := slices.DeleteFunc(slices.Clone(r.handlers[ch]), func(x Handler) bool { return x == h })
	if len(hs) > 0 {
		r.handlers[ch] = hs
		return nil
	}
	delete(r.handlers, ch)
	if r.pubsub == nil {
		return nil
	}
	if err := r.pubsub.Unsubscribe(ctx, ch); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", ch, err)
	}
	return nil
}

func (r *Redis) receive(msgs <-chan *redis.Message) {
	defer r.wg.Done()
	for m := range msgs {
		var msg Message
		if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
			log.Warn().Err(err).Str("module", "bus.redis").Str("channel", m.Channel).Msg("bad message")
			continue
		}
		r.mu.RLock()
		hs := slices.Clone(r.handlers[m.Channel])
		r.mu.RUnlock()
		for _, h := range hs {
			h.HandleMessage(msg)
		}
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackboneUnavailable, err)
	}
	return nil
}

// Close flushes queued messages once and disconnects.
func (r *Redis) Close() error {
	r.outMu.Lock()
	if r.closed {
		r.outMu.Unlock()
		return nil
	}
	r.closed = true
	r.outMu.Unlock()

	r.cancel()
	r.mu.Lock()
	ps := r.pubsub
	r.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
	r.wg.Wait()
	return r.client.Close()
}
