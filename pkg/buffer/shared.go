package buffer

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is the size of the packet buffer shared with the radio engine.
const DefaultCapacity = 512

var (
	ErrNotOwned = errors.New("buffer not owned by caller")
	ErrStale    = errors.New("buffer reference is stale")
)

type Owner int

const (
	OwnerApplication Owner = iota
	OwnerEngine
	// OwnerReadWindow: the engine published a received packet, the application may read it, nobody writes
	OwnerReadWindow
)

func (o Owner) String() string {
	switch o {
	case OwnerApplication:
		return "application"
	case OwnerEngine:
		return "engine"
	case OwnerReadWindow:
		return "read-window"
	}
	return fmt.Sprintf("owner(%d)", int(o))
}

// Shared is a single packet buffer handed back and forth between the application and the radio engine.
// At any instant exactly one side may write it.
type Shared struct {
	mu       sync.Mutex
	data     []byte
	owner    Owner
	gen      uint64 // bumped on every hand-off, grants and views of older generations are dead
	length   int    // valid bytes in the read window
	handoffs uint64
}

func New(capacity int) *Shared {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Shared{
		data:  make([]byte, capacity),
		owner: OwnerApplication,
	}
}

func (obj *Shared) Cap() int {
	return len(obj.data)
}

func (obj *Shared) Owner() Owner {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return obj.owner
}

// Handoffs returns the number of ownership transfers performed so far.
func (obj *Shared) Handoffs() uint64 {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	return obj.handoffs
}

// Bytes gives the application write access; only valid while the application owns the buffer.
func (obj *Shared) Bytes() ([]byte, error) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	if obj.owner != OwnerApplication {
		return nil, fmt.Errorf("application write while %s holds the buffer: %w", obj.owner, ErrNotOwned)
	}
	return obj.data, nil
}

// HandToEngine relinquishes application ownership. The returned grant is the engine's only way to touch the buffer.
func (obj *Shared) HandToEngine() (*Grant, error) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	if obj.owner != OwnerApplication {
		return nil, fmt.Errorf("failed to hand buffer to engine, current owner is %s: %w", obj.owner, ErrNotOwned)
	}
	obj.transfer(OwnerEngine)
	return &Grant{buf: obj, gen: obj.gen}, nil
}

// ReturnToApplication takes the buffer back from the engine, invalidating the engine grant and every view.
func (obj *Shared) ReturnToApplication() error {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	if obj.owner == OwnerApplication {
		return fmt.Errorf("buffer already returned to application: %w", ErrNotOwned)
	}
	obj.transfer(OwnerApplication)
	obj.length = 0
	return nil
}

func (obj *Shared) transfer(to Owner) {
	obj.owner = to
	obj.gen++
	obj.handoffs++
}

// Grant is the engine side of a hand-off.
type Grant struct {
	buf *Shared
	gen uint64
}

// Writable reports whether the engine still holds write ownership through this grant.
func (obj *Grant) Writable() bool {
	if obj == nil {
		return false
	}
	obj.buf.mu.Lock()
	defer obj.buf.mu.Unlock()
	return obj.buf.gen == obj.gen && obj.buf.owner == OwnerEngine
}

// Bytes returns the buffer for engine writes. Fails once the grant has been published or returned.
func (obj *Grant) Bytes() ([]byte, error) {
	if obj == nil {
		return nil, fmt.Errorf("nil grant: %w", ErrNotOwned)
	}
	obj.buf.mu.Lock()
	defer obj.buf.mu.Unlock()
	if obj.buf.gen != obj.gen || obj.buf.owner != OwnerEngine {
		return nil, fmt.Errorf("engine access with a dead grant: %w", ErrNotOwned)
	}
	return obj.buf.data, nil
}

// Publish ends the engine write phase and opens a read-only window over the first n bytes.
func (obj *Grant) Publish(n int) (View, error) {
	if obj == nil {
		return View{}, fmt.Errorf("nil grant: %w", ErrNotOwned)
	}
	b := obj.buf
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gen != obj.gen || b.owner != OwnerEngine {
		return View{}, fmt.Errorf("publish with a dead grant: %w", ErrNotOwned)
	}
	if n < 0 || n > len(b.data) {
		return View{}, fmt.Errorf("publish length %d out of range [0, %d]", n, len(b.data))
	}
	b.owner = OwnerReadWindow
	b.length = n
	return View{buf: b, gen: b.gen, n: n}, nil
}

// View is a read-only reference into the buffer, valid until the next hand-off.
type View struct {
	buf *Shared
	gen uint64
	n   int
}

func (obj View) Len() int {
	return obj.n
}

// Bytes returns the published bytes. Callers must not modify the returned slice.
func (obj View) Bytes() ([]byte, error) {
	if obj.buf == nil {
		return nil, nil
	}
	obj.buf.mu.Lock()
	defer obj.buf.mu.Unlock()
	if obj.buf.gen != obj.gen || obj.buf.owner != OwnerReadWindow {
		return nil, ErrStale
	}
	return obj.buf.data[:obj.n], nil
}
