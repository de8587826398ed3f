// Package notify wraps a NATS connection for cross-node cache-invalidation
// broadcast: when one node publishes or tombstones a file, every other
// node's catalog.Store.ListCache needs to drop its cached listing for that
// (tenant, stream) too. Single-node deployments never construct a Bus --
// catalog.Store already invalidates its own cache locally.
package notify

import (
	"encoding/json"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/openobserve/corelake/internal/errs"
	"github.com/openobserve/corelake/internal/logx"
)

const invalidateSubject = "corelake.catalog.invalidate"

// Bus wraps a NATS connection, grounded on the teacher's pkg/nats.Client:
// connection management plus reconnect/error logging, narrowed to the one
// publish/subscribe pair this system needs.
type Bus struct {
	conn *nats.Conn
	sub  *nats.Subscription
	mu   sync.Mutex
}

type invalidateMsg struct {
	Tenant string `json:"tenant"`
	Stream string `json:"stream"`
}

// Connect dials addr (e.g. "nats://localhost:4222").
func Connect(addr string) (*Bus, error) {
	nc, err := nats.Connect(addr,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logx.Warnf("notify: disconnected: %s", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logx.Infof("notify: reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logx.Errorf("notify: %s", err)
		}),
	)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, err, "notify: connect to %s", addr)
	}
	return &Bus{conn: nc}, nil
}

// PublishInvalidate broadcasts that (tenant, stream)'s file list changed.
// Suitable as the argument to catalog.Store.SetNotifyHook.
func (b *Bus) PublishInvalidate(tenant, stream string) {
	data, err := json.Marshal(invalidateMsg{Tenant: tenant, Stream: stream})
	if err != nil {
		return
	}
	if err := b.conn.Publish(invalidateSubject, data); err != nil {
		logx.Warnf("notify: publish invalidate for %s/%s: %s", tenant, stream, err)
	}
}

// SubscribeInvalidate registers handler to be called for every remote
// invalidation, including ones this same Bus published (handler is
// expected to be idempotent, matching catalog.Store.InvalidateListCache).
func (b *Bus) SubscribeInvalidate(handler func(tenant, stream string)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, err := b.conn.Subscribe(invalidateSubject, func(msg *nats.Msg) {
		var m invalidateMsg
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			logx.Warnf("notify: malformed invalidate message: %s", err)
			return
		}
		handler(m.Tenant, m.Stream)
	})
	if err != nil {
		return errs.Wrap(errs.Internal, err, "notify: subscribe")
	}
	b.sub = sub
	return nil
}

// Close unsubscribes and closes the underlying connection.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
	if b.conn != nil {
		b.conn.Close()
	}
}
