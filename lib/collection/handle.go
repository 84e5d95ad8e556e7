package collection

import (
	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/db/util"
	"github.com/ValentinKolb/dObj/lib/notify"
)

// Session is what collections need from the session owning them
type Session interface {
	ID() string

	// VerifyThread fails when called from a goroutine other than the owner's
	// or when the session is closed
	VerifyThread() error
	IsInTransaction() bool

	// Version returns the current data version of the group
	Version() uint64
	Coordinator() *notify.Coordinator
}

// backing is the storage structure behind a collection (a table or a link list)
type backing interface {
	Identity() db.Identity
	IsAttached() bool
	Size() int
}

// --------------------------------------------------------------------------
// Validation
// --------------------------------------------------------------------------

// handle holds the validation shared by every collection type
type handle struct {
	session Session
	backing backing
}

// IsValid reports whether the collection can be used: the session is open and used
// from its own goroutine, and the backing structure is still attached
func (h handle) IsValid() bool {
	if h.session == nil || h.backing == nil {
		return false
	}
	return h.session.VerifyThread() == nil && h.backing.IsAttached()
}

// VerifyAttached fails with ErrInvalidated when the backing structure is gone.
// Session errors (wrong goroutine, closed session) are returned unchanged.
func (h handle) VerifyAttached() error {
	if h.session == nil || h.backing == nil {
		return ErrInvalidated
	}
	if err := h.session.VerifyThread(); err != nil {
		return err
	}
	if !h.backing.IsAttached() {
		return ErrInvalidated
	}
	return nil
}

// VerifyInTransaction is VerifyAttached plus a check for an active write transaction
func (h handle) VerifyInTransaction() error {
	if err := h.VerifyAttached(); err != nil {
		return err
	}
	if !h.session.IsInTransaction() {
		return ErrInvalidTransaction
	}
	return nil
}

// sizeInTransaction verifies a write and returns the current size
func (h handle) sizeInTransaction() (int, error) {
	if err := h.VerifyInTransaction(); err != nil {
		return 0, err
	}
	return h.backing.Size(), nil
}

// sizeAttached verifies a read and returns the current size
func (h handle) sizeAttached() (int, error) {
	if err := h.VerifyAttached(); err != nil {
		return 0, err
	}
	return h.backing.Size(), nil
}

// Identity returns the stable identity of the backing structure
func (h handle) Identity() db.Identity {
	if h.backing == nil {
		return db.Identity{}
	}
	return h.backing.Identity()
}

func (h handle) equal(other handle) bool {
	if h.backing == nil || other.backing == nil {
		return h.backing == nil && other.backing == nil
	}
	return h.backing.Identity() == other.backing.Identity()
}

func (h handle) hash() uint64 {
	id := h.Identity()
	return util.HashUint64s(0, id.Table, uint64(id.Column), uint64(id.Row))
}

// addCallback registers a callback with the shared notifier of the backing structure
func (h handle) addCallback(source notify.SourceFunc, fn notify.Callback) (*notify.Token, error) {
	if err := h.VerifyAttached(); err != nil {
		return nil, err
	}
	n := h.session.Coordinator().NotifierFor(h.backing.Identity(), 0, h.session.ID(), source)
	return n.AddCallback(fn), nil
}

// verifyValidRow checks an index against the size.
// Insertions may use index == size.
func verifyValidRow(index, size int, insertion bool) error {
	valid := size
	if insertion {
		valid++
	}
	if index < 0 || index >= valid {
		return &OutOfBoundsIndexError{Requested: index, ValidCount: valid}
	}
	return nil
}
