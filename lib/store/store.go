package store

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/ValentinKolb/dObj/lib/common"
	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/notify"
	"github.com/ValentinKolb/dObj/lib/session"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// Store owns a group and its notification coordinator
type Store struct {
	id     string
	group  db.Group
	coord  *notify.Coordinator
	config common.Config

	mu     sync.Mutex
	closed bool
}

// Open creates the group with the factory and loads the data file of the config if it exists
func Open(factory GroupFactory, config common.Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, wrapError(RetCInvalidOperation, "invalid config", err)
	}

	group := factory()
	if config.DataFile != "" {
		if err := load(group, config.DataFile); err != nil {
			_ = group.Close()
			return nil, err
		}
	}

	s := &Store{
		id:     uuid.NewString(),
		group:  group,
		coord:  notify.For(group),
		config: config,
	}
	Logger.Infof("opened store %s (tables: %d, data file: %q)", s.id, len(group.TableNames()), config.DataFile)
	return s, nil
}

// load restores the group from path, a missing file leaves the group empty
func load(group db.Group, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		Logger.Infof("data file %q does not exist yet, starting empty", path)
		return nil
	}
	if err != nil {
		return wrapError(RetCInternalError, "open data file", err)
	}
	defer f.Close()

	if !group.SupportsFeature(db.FeatureLoad) {
		return NewError(RetCUnsupportedOperation, "engine can not load data files")
	}
	if err := group.Load(bufio.NewReader(f)); err != nil {
		return wrapError(RetCInternalError, "load data file", err)
	}
	return nil
}

// ID returns the random id of this store
func (s *Store) ID() string {
	return s.id
}

func (s *Store) Group() db.Group {
	return s.group
}

func (s *Store) Coordinator() *notify.Coordinator {
	return s.coord
}

func (s *Store) Config() common.Config {
	return s.config
}

// NewSession opens a session bound to the calling goroutine
func (s *Store) NewSession() (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, NewError(RetCInvalidOperation, "store is closed")
	}
	sess, err := session.Open(s.group, s.coord, s.config)
	if err != nil {
		return nil, wrapError(RetCInternalError, "open session", err)
	}
	return sess, nil
}

// Save writes the group to the data file.
// It waits for running write transactions of other goroutines and fails with
// ErrInvalidOperation when the calling goroutine is inside one.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NewError(RetCInvalidOperation, "store is closed")
	}
	return s.save()
}

func (s *Store) save() error {
	if s.config.DataFile == "" {
		return NewError(RetCInvalidOperation, "no data file configured")
	}
	if !s.group.SupportsFeature(db.FeatureSave) {
		return NewError(RetCUnsupportedOperation, "engine can not save data files")
	}

	if s.coord.HoldsWrite() {
		return NewError(RetCInvalidOperation, "save inside a write transaction")
	}
	s.coord.LockWrite()
	defer s.coord.UnlockWrite()

	// write to a temporary file first, a failed save keeps the old file intact
	dir := filepath.Dir(s.config.DataFile)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.config.DataFile)+".*.tmp")
	if err != nil {
		return wrapError(RetCInternalError, "create temporary file", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := s.group.Save(w); err != nil {
		_ = tmp.Close()
		return wrapError(RetCInternalError, "save group", err)
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return wrapError(RetCInternalError, "flush data file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return wrapError(RetCInternalError, "sync data file", err)
	}
	if err := tmp.Close(); err != nil {
		return wrapError(RetCInternalError, "close data file", err)
	}
	if err := os.Rename(tmp.Name(), s.config.DataFile); err != nil {
		return wrapError(RetCInternalError, "replace data file", err)
	}

	Logger.Infof("saved store %s to %q at version %d", s.id, s.config.DataFile, s.group.Version())
	return nil
}

// Close saves the group when configured, then shuts down the coordinator and the group.
// Calling Close again is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.config.SaveOnClose && s.config.DataFile != "" {
		if err := s.save(); err != nil {
			errs = append(errs, err)
		}
	}
	s.coord.Close()
	if err := s.group.Close(); err != nil {
		errs = append(errs, wrapError(RetCInternalError, "close group", err))
	}

	Logger.Infof("closed store %s", s.id)
	return errors.Join(errs...)
}
