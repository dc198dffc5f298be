package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrNilLink = errors.New("link is nil")

// DefaultLinkCloseTimeout bounds how long a registration waits for a
// superseded or uncorrelated link to close.
const DefaultLinkCloseTimeout = 30 * time.Second

// LinkRegistry maps roles to the active link of one connection. All mutation
// is serialized on a single mutex, including the cascading closes a
// registration may trigger, so two concurrent registrations can never leave a
// pair with mismatched correlation tokens.
type LinkRegistry struct {
	mu           sync.Mutex
	links        map[LinkRole]Link
	closeTimeout time.Duration
}

func NewLinkRegistry() *LinkRegistry {
	return &LinkRegistry{
		links:        make(map[LinkRole]Link),
		closeTimeout: DefaultLinkCloseTimeout,
	}
}

func (r *LinkRegistry) SetCloseTimeout(d time.Duration) {
	r.closeTimeout = d
}

// Register installs link at its role. A same-role occupant is closed and
// superseded first; a paired occupant whose correlation token differs is
// evicted the same way. A failed close aborts the registration and leaves the
// occupant in place.
func (r *LinkRegistry) Register(ctx context.Context, link Link) error {
	if link == nil {
		return ErrNilLink
	}
	role := link.Role()

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.links[role]; ok {
		slog.Debug("Superseding stale link", "role", role, "correlation", old.CorrelationToken())
		if err := r.closeLink(ctx, old); err != nil {
			return fmt.Errorf("closing superseded %s link: %w", role, err)
		}
		delete(r.links, role)
	}

	if paired, ok := role.Pair(); ok {
		if other, occupied := r.links[paired]; occupied && other.CorrelationToken() != link.CorrelationToken() {
			slog.Debug("Evicting uncorrelated paired link",
				"role", paired,
				"have", other.CorrelationToken(),
				"want", link.CorrelationToken(),
			)
			if err := r.closeLink(ctx, other); err != nil {
				return fmt.Errorf("closing uncorrelated %s link: %w", paired, err)
			}
			delete(r.links, paired)
		}
	}

	r.links[role] = link
	return nil
}

// Remove deletes the entry for link's role if one is present and reports
// whether the removal drained the registry to empty.
func (r *LinkRegistry) Remove(link Link) (empty bool, err error) {
	if link == nil {
		return false, ErrNilLink
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.links[link.Role()]; !ok {
		return false, nil
	}
	delete(r.links, link.Role())
	return len(r.links) == 0, nil
}

func (r *LinkRegistry) Get(role LinkRole) (Link, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[role]
	return link, ok
}

// Sender returns the link for role if it is registered and send-capable.
func (r *LinkRegistry) Sender(role LinkRole) (SenderLink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[role]
	if !ok {
		return nil, false
	}
	sender, ok := link.(SenderLink)
	return sender, ok
}

func (r *LinkRegistry) List() []Link {
	r.mu.Lock()
	defer r.mu.Unlock()

	links := make([]Link, 0, len(r.links))
	for _, link := range r.links {
		links = append(links, link)
	}
	return links
}

func (r *LinkRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.links)
}

func (r *LinkRegistry) closeLink(ctx context.Context, link Link) error {
	ctx, cancel := context.WithTimeout(ctx, r.closeTimeout)
	defer cancel()
	return link.Close(ctx)
}
