// Package cache provides in-process caches invalidated through PostgreSQL LISTEN/NOTIFY.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"palmledger/internal/core/id"
	"palmledger/internal/domain/reports"
	"palmledger/pkg/logger"
)

// AgentsChannel is notified by the agents table trigger with the changed agent id.
const AgentsChannel = "agents_changed"

// NameSource resolves agent names from storage.
type NameSource interface {
	Names(ctx context.Context, ids []id.ID) (map[id.ID]string, error)
}

// AgentNames caches agent display names for reports. Entries are dropped when the agents
// table notifies a change.
type AgentNames struct {
	source NameSource
	pool   *pgxpool.Pool

	mu    sync.RWMutex
	names map[id.ID]string

	// Lifecycle
	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

var _ reports.AgentDirectory = (*AgentNames)(nil)

// NewAgentNames creates the cache. pool may be nil, the cache then never invalidates and
// Start is a no-op.
func NewAgentNames(source NameSource, pool *pgxpool.Pool) *AgentNames {
	return &AgentNames{
		source: source,
		pool:   pool,
		names:  make(map[id.ID]string),
	}
}

// Names returns cached names and loads the missing ones from the source.
func (c *AgentNames) Names(ctx context.Context, ids []id.ID) (map[id.ID]string, error) {
	out := make(map[id.ID]string, len(ids))
	var missing []id.ID

	c.mu.RLock()
	for _, agentID := range ids {
		if name, ok := c.names[agentID]; ok {
			out[agentID] = name
		} else {
			missing = append(missing, agentID)
		}
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.source.Names(ctx, missing)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for agentID, name := range loaded {
		c.names[agentID] = name
		out[agentID] = name
	}
	c.mu.Unlock()
	return out, nil
}

// Invalidate drops one agent, or everything when payload is not an agent id.
func (c *AgentNames) Invalidate(payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	agentID, err := id.Parse(strings.TrimSpace(payload))
	if err != nil {
		c.names = make(map[id.ID]string)
		return
	}
	delete(c.names, agentID)
}

// Start begins listening for agent change notifications.
func (c *AgentNames) Start(ctx context.Context) error {
	if c.pool == nil {
		return nil
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.started {
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true

	c.wg.Add(1)
	go c.listenLoop()
	logger.Info(c.ctx, "agent name cache started")
	return nil
}

// Stop gracefully stops the listener.
func (c *AgentNames) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	cancel()
	c.wg.Wait()
	logger.Info(context.Background(), "agent name cache stopped")
}

func (c *AgentNames) listenLoop() {
	defer c.wg.Done()

	for c.ctx.Err() == nil {
		conn, err := c.pool.Acquire(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				logger.Error(c.ctx, "failed to acquire connection for LISTEN", "error", err)
				time.Sleep(time.Second)
			}
			continue
		}

		if _, err := conn.Exec(c.ctx, "LISTEN "+AgentsChannel); err != nil {
			logger.Error(c.ctx, "failed to LISTEN", "channel", AgentsChannel, "error", err)
			conn.Release()
			time.Sleep(time.Second)
			continue
		}

		// Notifications may have been missed while disconnected.
		c.Invalidate("")
		c.waitForNotifications(conn)
		conn.Release()
	}
}

func (c *AgentNames) waitForNotifications(conn *pgxpool.Conn) {
	for {
		ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
		notification, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			if ctx.Err() == context.DeadlineExceeded {
				continue
			}
			logger.Warn(c.ctx, "agent notification wait failed", "error", err)
			return
		}

		logger.Debug(c.ctx, "received notification",
			"channel", notification.Channel,
			"payload", notification.Payload)
		c.Invalidate(notification.Payload)
	}
}
