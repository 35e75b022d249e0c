package identity

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// SessionListener receives every session transition. creds is nil after a
// sign-out. ctx is the context of the call that caused the transition.
type SessionListener func(ctx context.Context, creds *Credentials)

// Client holds at most one session against a Backend and tells listeners about
// every change to it. Listeners run synchronously in registration order, so a
// SignIn or SignOut call returns only after every listener has seen the change.
type Client struct {
	backend Backend

	mu        sync.Mutex
	creds     *Credentials
	next      int
	listeners map[int]SessionListener

	// notify serialises transitions so listeners observe them in order.
	notify sync.Mutex
}

func NewClient(b Backend) *Client {
	return &Client{
		backend:   b,
		listeners: make(map[int]SessionListener),
	}
}

// OnSessionChange registers fn and returns a function that removes it.
func (c *Client) OnSessionChange(fn SessionListener) func() {
	c.mu.Lock()
	c.next++
	id := c.next
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Client) SignIn(ctx context.Context, email, password string) (Credentials, error) {
	creds, err := c.backend.Authenticate(ctx, email, password)
	if err != nil {
		return Credentials{}, err
	}
	c.transition(ctx, &creds)
	return creds, nil
}

// SignUp registers a new account without signing in.
func (c *Client) SignUp(ctx context.Context, email, password string, attrs Attributes) (string, error) {
	if err := CheckPassword(password); err != nil {
		return "", err
	}
	return c.backend.Register(ctx, email, password, attrs)
}

// Restore adopts an existing token after the backend confirms it.
func (c *Client) Restore(ctx context.Context, token string) (Credentials, error) {
	userID, err := c.backend.Verify(ctx, token)
	if err != nil {
		return Credentials{}, err
	}
	creds := Credentials{UserID: userID, Token: token}
	c.transition(ctx, &creds)
	return creds, nil
}

// SignOut clears the local session and notifies listeners even when the
// backend could not revoke the token. The revocation error is still returned.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	current := c.creds
	c.mu.Unlock()

	var err error
	if current != nil {
		if ierr := c.backend.Invalidate(ctx, current.Token); ierr != nil {
			err = errors.Wrap(ierr, "invalidate session")
		}
	}
	c.transition(ctx, nil)
	return err
}

// Session returns the current credentials, if any.
func (c *Client) Session() (Credentials, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds == nil {
		return Credentials{}, false
	}
	return *c.creds, true
}

func (c *Client) transition(ctx context.Context, creds *Credentials) {
	c.notify.Lock()
	defer c.notify.Unlock()

	c.mu.Lock()
	c.creds = creds
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]SessionListener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.listeners[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		var arg *Credentials
		if creds != nil {
			cp := *creds
			arg = &cp
		}
		fn(ctx, arg)
	}
}
