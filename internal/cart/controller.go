// Package cart maintains the local mirror of the session's server-side
// cart. The mirror is always subordinate to a refresh: every mutation is
// followed by a full fetch instead of trusting partial responses.
package cart

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/thehub/storefront/internal/auth"
	"github.com/thehub/storefront/internal/backend"
	"github.com/thehub/storefront/internal/httpx"
	"github.com/thehub/storefront/internal/normalize"
	"github.com/thehub/storefront/internal/session"
	"github.com/thehub/storefront/internal/state"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrInvalidProduct  = errors.New("invalid product reference")
	ErrNoActiveCart    = errors.New("no active cart available")
)

const reconcileTimeout = 15 * time.Second

type Controller struct {
	api   *backend.CartAPI
	store *state.Store
	log   *slog.Logger

	sf singleflight.Group

	// opMu serializes mutations; the mirror never changes under a caller
	// that is mid-mutation.
	opMu sync.Mutex

	mu             sync.Mutex
	cartID         int64
	userID         int64
	items          []normalize.CartItem
	loading        bool
	mutating       bool
	lastErr        string
	lastAuthStatus auth.Status

	bootOnce sync.Once
	unsubs   []func()
}

func NewController(api *backend.CartAPI, store *state.Store, authCtrl *auth.Controller, tokens *session.TokenStore, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	c := &Controller{
		api:    api,
		store:  store,
		log:    log.With("component", "cart"),
		cartID: storedCartID(store),
	}
	if authCtrl != nil {
		c.lastAuthStatus = authCtrl.Status()
		c.unsubs = append(c.unsubs, authCtrl.OnStatusChange(c.handleAuthStatus))
	}
	if tokens != nil {
		c.unsubs = append(c.unsubs, tokens.OnUnauthorized(func(code int) {
			if code == http.StatusUnauthorized {
				c.resetLocal()
			}
		}))
	}
	return c
}

// Close detaches the controller from the auth and token observers.
func (c *Controller) Close() {
	for _, unsub := range c.unsubs {
		unsub()
	}
}

// Boot runs the one-time startup reconciliation: refresh a previously
// persisted cart, or ensure a fresh one. While auth is still Checking the
// boot is skipped; the stable-transition observer takes over from there.
func (c *Controller) Boot(ctx context.Context, authStatus auth.Status) {
	c.bootOnce.Do(func() {
		if authStatus == auth.StatusChecking {
			return
		}
		if id := c.CartID(); id != 0 {
			if _, err := c.RefreshCart(ctx, id); err != nil {
				c.log.Warn("boot refresh failed", "cart_id", id, "error", err)
			}
			return
		}
		id, err := c.EnsureCart(ctx)
		if err != nil {
			c.log.Warn("boot ensure failed", "error", err)
			return
		}
		if id != 0 {
			if _, err := c.RefreshCart(ctx, id); err != nil {
				c.log.Warn("boot refresh failed", "cart_id", id, "error", err)
			}
		}
	})
}

// EnsureCart resolves the active cart id, asking the backend to
// create-or-fetch one only when none is known. Concurrent callers share a
// single in-flight request.
func (c *Controller) EnsureCart(ctx context.Context) (int64, error) {
	if id := c.CartID(); id != 0 {
		return id, nil
	}

	c.setLoading(true)
	defer c.setLoading(false)

	v, err, _ := c.sf.Do("ensure", func() (any, error) {
		cart, err := c.api.Ensure(ctx)
		if err != nil {
			c.classify(err)
			return int64(0), err
		}
		c.apply(cart)
		return cart.CartID, nil
	})
	id, _ := v.(int64)
	return id, err
}

// RefreshCart fetches authoritative cart state and overwrites the mirror.
// targetID zero means the current (or persisted) cart. A refresh already in
// progress is shared, never duplicated.
func (c *Controller) RefreshCart(ctx context.Context, targetID int64) (*normalize.Cart, error) {
	effective := targetID
	if effective == 0 {
		effective = c.CartID()
	}
	if effective == 0 {
		effective = storedCartID(c.store)
	}
	if effective == 0 {
		return nil, nil
	}

	c.setLoading(true)
	defer c.setLoading(false)

	v, err, _ := c.sf.Do("refresh", func() (any, error) {
		cart, err := c.api.Get(ctx, effective)
		if err != nil {
			c.classify(err)
			return (*normalize.Cart)(nil), err
		}
		c.apply(cart)
		return cart, nil
	})
	cart, _ := v.(*normalize.Cart)
	return cart, err
}

// AddItem validates, ensures a cart, issues the add and refreshes the
// mirror from server truth.
func (c *Controller) AddItem(ctx context.Context, productID int64, quantity int) error {
	if normalize.Quantity(quantity) == 0 {
		return ErrInvalidQuantity
	}
	if productID == 0 {
		return ErrInvalidProduct
	}
	return c.mutate(func() error {
		id, err := c.EnsureCart(ctx)
		if err != nil {
			return err
		}
		if id == 0 {
			return ErrNoActiveCart
		}
		if err := c.api.AddItem(ctx, id, productID, quantity); err != nil {
			c.classify(err)
			return err
		}
		_, err = c.RefreshCart(ctx, id)
		return err
	})
}

func (c *Controller) UpdateQuantity(ctx context.Context, cartItemID int64, quantity int) error {
	if normalize.Quantity(quantity) == 0 {
		return ErrInvalidQuantity
	}
	return c.mutate(func() error {
		if err := c.api.UpdateQuantity(ctx, cartItemID, quantity); err != nil {
			c.classify(err)
			return err
		}
		_, err := c.RefreshCart(ctx, 0)
		return err
	})
}

func (c *Controller) RemoveItem(ctx context.Context, cartItemID int64) error {
	return c.mutate(func() error {
		if err := c.api.RemoveItem(ctx, cartItemID); err != nil {
			c.classify(err)
			return err
		}
		_, err := c.RefreshCart(ctx, 0)
		return err
	})
}

// IncrementItem raises the item's quantity by one, derived from the mirror.
// Unknown items are a no-op, mirroring a stale UI click.
func (c *Controller) IncrementItem(ctx context.Context, cartItemID int64) error {
	item, ok := c.item(cartItemID)
	if !ok {
		return nil
	}
	return c.UpdateQuantity(ctx, cartItemID, item.Quantity+1)
}

// DecrementItem lowers the quantity by one. A quantity that would reach
// zero removes the item instead: zero is never persisted, zero means delete.
func (c *Controller) DecrementItem(ctx context.Context, cartItemID int64) error {
	item, ok := c.item(cartItemID)
	if !ok {
		return nil
	}
	if item.Quantity-1 <= 0 {
		return c.RemoveItem(ctx, cartItemID)
	}
	return c.UpdateQuantity(ctx, cartItemID, item.Quantity-1)
}

func (c *Controller) ClearCart(ctx context.Context) error {
	id, err := c.EnsureCart(ctx)
	if err != nil {
		return err
	}
	if id == 0 {
		return nil
	}
	return c.mutate(func() error {
		if err := c.api.Clear(ctx, id); err != nil {
			c.classify(err)
			return err
		}
		_, err := c.RefreshCart(ctx, id)
		return err
	})
}

func (c *Controller) CartID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cartID
}

func (c *Controller) UserID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Controller) Items() []normalize.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]normalize.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// Totals returns the mirror's item count and price sum.
func (c *Controller) Totals() (int, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var count int
	var price float64
	for _, it := range c.items {
		count += it.Quantity
		price += it.Subtotal
	}
	return count, price
}

func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Controller) IsMutating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mutating
}

func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// handleAuthStatus re-bootstraps the cart when auth moves between stable
// states: the previous identity's cart is abandoned and a fresh one
// resolved. Checking is ignored so transient states don't thrash the cart.
func (c *Controller) handleAuthStatus(s auth.Status) {
	if !s.Stable() {
		return
	}
	c.mu.Lock()
	if s == c.lastAuthStatus {
		c.mu.Unlock()
		return
	}
	c.lastAuthStatus = s
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	c.resetLocal()
	id, err := c.EnsureCart(ctx)
	if err != nil {
		c.log.Warn("cart re-ensure after auth change failed", "error", err)
		return
	}
	if id != 0 {
		if _, err := c.RefreshCart(ctx, id); err != nil {
			c.log.Warn("cart refresh after auth change failed", "error", err)
		}
	}
}

func (c *Controller) mutate(fn func() error) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	c.mutating = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.mutating = false
		c.mu.Unlock()
	}()

	return fn()
}

func (c *Controller) apply(cart *normalize.Cart) {
	if cart == nil {
		return
	}
	if cart.CartID != 0 {
		c.store.Set(state.KeyCartID, strconv.FormatInt(cart.CartID, 10))
	}
	c.mu.Lock()
	c.cartID = cart.CartID
	c.userID = cart.UserID
	c.items = cart.Items
	c.lastErr = ""
	c.mu.Unlock()
}

func (c *Controller) resetLocal() {
	c.store.Delete(state.KeyCartID)
	c.mu.Lock()
	c.cartID = 0
	c.userID = 0
	c.items = nil
	c.mu.Unlock()
}

// classify applies the error policy: 429 is transient noise and touches
// nothing, 404 means the local cart id is stale and is discarded so the
// next operation self-heals, anything else surfaces a visible message.
func (c *Controller) classify(err error) {
	code := httpx.StatusCode(err)
	switch code {
	case http.StatusTooManyRequests:
		return
	case http.StatusNotFound:
		c.resetLocal()
	}
	msg := httpx.Message(err, "cart operation failed")
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
	c.log.Warn("cart error", "status", code, "error", err)
}

func (c *Controller) item(cartItemID int64) (normalize.CartItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.items {
		if it.ID == cartItemID {
			return it, true
		}
	}
	return normalize.CartItem{}, false
}

func (c *Controller) setLoading(v bool) {
	c.mu.Lock()
	c.loading = v
	c.mu.Unlock()
}

func storedCartID(store *state.Store) int64 {
	raw := store.Get(state.KeyCartID)
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
