package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dObj/lib/common"
	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/db/util"
	"github.com/ValentinKolb/dObj/lib/notify"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("session")

var (
	ErrWrongGoroutine = errors.New("session used from a goroutine other than the one that opened it")
	ErrClosed         = errors.New("session is closed")
	ErrAlreadyInWrite = errors.New("session is already in a write transaction")
	ErrNotInWrite     = errors.New("session is not in a write transaction")
)

// Session is the handle through which one goroutine reads and writes a group.
//
// A session is confined to the goroutine that opened it: every method except
// ID, Group and Coordinator first checks the calling goroutine (when enabled in the
// config) and fails with ErrWrongGoroutine otherwise.
//
// Write transactions of all sessions of a group are serialized by the coordinator.
// There is no rollback, changes are visible to other sessions immediately and
// reported to notifiers on CommitWrite.
type Session struct {
	id        string
	group     db.Group
	coord     *notify.Coordinator
	goroutine int64
	verify    bool

	closed  bool
	inWrite bool
}

// Open creates a session bound to the calling goroutine
func Open(group db.Group, coord *notify.Coordinator, config common.Config) (*Session, error) {
	if group == nil || coord == nil {
		return nil, fmt.Errorf("open session: group and coordinator are required")
	}
	s := &Session{
		id:        uuid.NewString(),
		group:     group,
		coord:     coord,
		goroutine: util.GoroutineID(),
		verify:    config.VerifyGoroutine,
	}
	Logger.Debugf("opened session %s on goroutine %d", s.id, s.goroutine)
	return s, nil
}

// ID returns the unique id of the session
func (s *Session) ID() string {
	return s.id
}

func (s *Session) Group() db.Group {
	return s.group
}

func (s *Session) Coordinator() *notify.Coordinator {
	return s.coord
}

// VerifyThread checks that the session is open and used from its own goroutine
func (s *Session) VerifyThread() error {
	if s.verify && util.GoroutineID() != s.goroutine {
		return ErrWrongGoroutine
	}
	if s.closed {
		return ErrClosed
	}
	return nil
}

// IsClosed reports whether Close was called
func (s *Session) IsClosed() bool {
	return s.closed
}

// IsInTransaction reports whether the session has an active write transaction
func (s *Session) IsInTransaction() bool {
	return !s.closed && s.inWrite
}

// Version returns the current data version of the group
func (s *Session) Version() uint64 {
	return s.group.Version()
}

// BeginWrite starts a write transaction, blocking while another session writes
func (s *Session) BeginWrite() error {
	if err := s.VerifyThread(); err != nil {
		return err
	}
	if s.inWrite {
		return ErrAlreadyInWrite
	}
	s.coord.LockWrite()
	s.inWrite = true
	return nil
}

// CommitWrite ends the write transaction and hands the new version to the coordinator
func (s *Session) CommitWrite() error {
	if err := s.VerifyThread(); err != nil {
		return err
	}
	return s.commit()
}

func (s *Session) commit() error {
	if !s.inWrite {
		return ErrNotInWrite
	}
	version := s.group.Version()
	s.inWrite = false
	s.coord.UnlockWrite()

	if err := s.coord.Commit(version); err != nil {
		return fmt.Errorf("commit version %d: %w", version, err)
	}
	Logger.Debugf("session %s committed version %d", s.id, version)
	return nil
}

// Write runs fn inside a write transaction.
// The transaction is committed even if fn fails, fn's error is returned.
func (s *Session) Write(fn func() error) error {
	if err := s.BeginWrite(); err != nil {
		return err
	}
	fnErr := fn()
	if err := s.commit(); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}

// Refresh waits until the coordinator processed every commit made so far and
// invokes the pending notification callbacks of this session on the calling goroutine.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.VerifyThread(); err != nil {
		return err
	}
	if err := s.coord.Sync(ctx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	s.coord.Deliver(s.id)
	return nil
}

// Close ends an active write transaction and drops all notifiers of the session.
// Closing a closed session is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	if s.verify && util.GoroutineID() != s.goroutine {
		return ErrWrongGoroutine
	}

	var err error
	if s.inWrite {
		err = s.commit()
	}
	s.coord.DropSession(s.id)
	s.closed = true
	Logger.Debugf("closed session %s", s.id)
	return err
}
