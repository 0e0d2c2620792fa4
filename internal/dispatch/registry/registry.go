// Package registry tracks the live websocket connections of one dispatch
// instance: one connection per user, plus the group of connected drivers.
package registry

import (
	"context"
	"sort"
	"sync"

	"medilink/pkg/logger"
	"medilink/pkg/model"
)

// Client is one websocket connection. Its identity is empty until the
// connection authenticates and is registered.
type Client struct {
	ID   string
	send chan []byte

	mu     sync.RWMutex
	userID string
	role   string

	// While held, broadcasts wait in backlog so they reach the connection
	// after the frames queued by the holder.
	held    bool
	backlog [][]byte
}

func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{
		ID:   id,
		send: make(chan []byte, buffer),
	}
}

func (c *Client) Identity() (userID, role string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID, c.role
}

func (c *Client) Authenticated() bool {
	userID, _ := c.Identity()
	return userID != ""
}

// Messages is drained by the connection's write loop.
func (c *Client) Messages() <-chan []byte {
	return c.send
}

// Deliver queues msg without blocking. A full buffer drops the message.
func (c *Client) Deliver(msg []byte) bool {
	c.mu.Lock()
	if c.held {
		defer c.mu.Unlock()
		if len(c.backlog) >= cap(c.send) {
			return false
		}
		c.backlog = append(c.backlog, msg)
		return true
	}
	c.mu.Unlock()

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// DeliverWait queues msg, waiting for buffer space until ctx ends. It is used
// for direct replies and replays, which must not be dropped.
func (c *Client) DeliverWait(ctx context.Context, msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// Hold parks broadcasts until Release. DeliverWait is not affected, so the
// holder can queue a replay ahead of anything broadcast meanwhile.
func (c *Client) Hold() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held = true
}

// Release flushes the backlog in arrival order and resumes direct delivery.
// It reports false if ctx ended before the backlog was flushed; the rest of
// the backlog is discarded.
func (c *Client) Release(ctx context.Context) bool {
	for {
		c.mu.Lock()
		batch := c.backlog
		c.backlog = nil
		if len(batch) == 0 {
			c.held = false
			c.mu.Unlock()
			return true
		}
		c.mu.Unlock()

		for _, msg := range batch {
			if !c.DeliverWait(ctx, msg) {
				c.mu.Lock()
				c.held = false
				c.backlog = nil
				c.mu.Unlock()
				return false
			}
		}
	}
}

func (c *Client) setIdentity(userID, role string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.role = role
}

type Registry struct {
	mu      sync.RWMutex
	users   map[string]*Client
	drivers map[*Client]struct{}
	log     *logger.Logger
}

func New(log *logger.Logger) *Registry {
	return &Registry{
		users:   make(map[string]*Client),
		drivers: make(map[*Client]struct{}),
		log:     log,
	}
}

// Register binds c to userID. A previous connection of the same user loses
// its mapping and is returned; it stays open but receives nothing further.
func (r *Registry) Register(c *Client, userID, role string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prevUser, _ := c.Identity(); prevUser != "" && prevUser != userID {
		r.removeLocked(c, prevUser)
	}

	replaced := r.users[userID]
	if replaced == c {
		replaced = nil
	}
	if replaced != nil {
		delete(r.drivers, replaced)
	}

	c.setIdentity(userID, role)
	r.users[userID] = c
	if role == model.RoleDriver {
		r.drivers[c] = struct{}{}
	} else {
		delete(r.drivers, c)
	}

	r.log.Debug("Client registered", "client_id", c.ID, "user_id", userID, "role", role, "replaced", replaced != nil)
	return replaced
}

// Unregister drops c. It reports true only when c was still the current
// connection of its user, so a replaced connection closing is a no-op.
func (r *Registry) Unregister(c *Client) bool {
	userID, _ := c.Identity()
	if userID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(c, userID)
}

func (r *Registry) removeLocked(c *Client, userID string) bool {
	delete(r.drivers, c)
	if r.users[userID] != c {
		return false
	}
	delete(r.users, userID)
	return true
}

func (r *Registry) SendToUser(userID string, msg []byte) bool {
	r.mu.RLock()
	c, ok := r.users[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	if !c.Deliver(msg) {
		r.log.Warn("Dropped message for slow client", "client_id", c.ID, "user_id", userID)
		return false
	}
	return true
}

// SendToDrivers fans msg out to every connected driver and returns how many
// accepted it.
func (r *Registry) SendToDrivers(msg []byte) int {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.drivers))
	for c := range r.drivers {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.Deliver(msg) {
			delivered++
			continue
		}
		userID, _ := c.Identity()
		r.log.Warn("Dropped message for slow driver", "client_id", c.ID, "user_id", userID)
	}
	return delivered
}

func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.users[userID]
	return c, ok
}

// OnlineDrivers lists the driver ids connected to this instance.
func (r *Registry) OnlineDrivers() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.drivers))
	for c := range r.drivers {
		userID, _ := c.Identity()
		ids = append(ids, userID)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

func (r *Registry) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
