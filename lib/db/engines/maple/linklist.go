package maple

import (
	"github.com/ValentinKolb/dObj/lib/db"
)

// linkList implements db.LinkList. Exactly one instance exists per link list cell,
// so every accessor of the same cell shares it.
type linkList struct {
	origin    *table
	col       int
	originKey db.RowKey
	targets   []db.RowKey
	attached  bool
}

// --------------------------------------------------------------------------
// Internal helpers (the caller must hold the group lock)
// --------------------------------------------------------------------------

func (ll *linkList) target() *table {
	return ll.origin.targets[ll.col]
}

// removeKey removes every link to the given target row
func (ll *linkList) removeKey(key db.RowKey) {
	kept := ll.targets[:0]
	for _, k := range ll.targets {
		if k != key {
			kept = append(kept, k)
		}
	}
	ll.targets = kept
}

// targetKey returns the key of a target row by index
func (ll *linkList) targetKey(targetRow int) (db.RowKey, error) {
	target := ll.target()
	if !target.attached {
		return 0, db.ErrDetached
	}
	if targetRow < 0 || targetRow >= len(target.rows) {
		return 0, db.ErrRowOutOfRange
	}
	return target.rows[targetRow].Key, nil
}

// touch marks the origin row as modified
func (ll *linkList) touch() {
	version := ll.origin.g.bump()
	if pos := ll.origin.position(ll.originKey); pos != db.NotFound {
		ll.origin.rows[pos].Version = version
	}
}

func (ll *linkList) checkIndex(i int, insertion bool) error {
	if !ll.attached {
		return db.ErrDetached
	}
	limit := len(ll.targets)
	if insertion {
		limit++
	}
	if i < 0 || i >= limit {
		return db.ErrRowOutOfRange
	}
	return nil
}

// --------------------------------------------------------------------------
// db.LinkList Interface - Metadata and Reads
// --------------------------------------------------------------------------

func (ll *linkList) Identity() db.Identity {
	return db.Identity{Table: ll.origin.key, Column: ll.col, Row: ll.originKey}
}

func (ll *linkList) IsAttached() bool {
	ll.origin.g.mu.RLock()
	defer ll.origin.g.mu.RUnlock()
	return ll.attached
}

func (ll *linkList) OriginTable() db.Table {
	return ll.origin
}

func (ll *linkList) OriginRow() int {
	ll.origin.g.mu.RLock()
	defer ll.origin.g.mu.RUnlock()
	if !ll.attached {
		return db.NotFound
	}
	return ll.origin.position(ll.originKey)
}

func (ll *linkList) TargetTable() db.Table {
	return ll.target()
}

func (ll *linkList) Size() int {
	ll.origin.g.mu.RLock()
	defer ll.origin.g.mu.RUnlock()
	if !ll.attached {
		return 0
	}
	return len(ll.targets)
}

func (ll *linkList) Get(i int) int {
	ll.origin.g.mu.RLock()
	defer ll.origin.g.mu.RUnlock()
	if ll.checkIndex(i, false) != nil {
		return db.NotFound
	}
	return ll.target().position(ll.targets[i])
}

func (ll *linkList) Find(targetRow int) int {
	ll.origin.g.mu.RLock()
	defer ll.origin.g.mu.RUnlock()
	if !ll.attached {
		return db.NotFound
	}
	key, err := ll.targetKey(targetRow)
	if err != nil {
		return db.NotFound
	}
	for i, k := range ll.targets {
		if k == key {
			return i
		}
	}
	return db.NotFound
}

func (ll *linkList) RowStates() []db.RowState {
	ll.origin.g.mu.RLock()
	defer ll.origin.g.mu.RUnlock()
	if !ll.attached {
		return nil
	}
	target := ll.target()
	states := make([]db.RowState, 0, len(ll.targets))
	for _, k := range ll.targets {
		if pos := target.position(k); pos != db.NotFound {
			states = append(states, db.RowState{Key: k, Version: target.rows[pos].Version})
		}
	}
	return states
}

// --------------------------------------------------------------------------
// db.LinkList Interface - Writes
// --------------------------------------------------------------------------

func (ll *linkList) Add(targetRow int) error {
	ll.origin.g.mu.Lock()
	defer ll.origin.g.mu.Unlock()
	if !ll.attached {
		return db.ErrDetached
	}
	key, err := ll.targetKey(targetRow)
	if err != nil {
		return err
	}
	ll.targets = append(ll.targets, key)
	ll.touch()
	return nil
}

func (ll *linkList) Insert(i, targetRow int) error {
	ll.origin.g.mu.Lock()
	defer ll.origin.g.mu.Unlock()
	if err := ll.checkIndex(i, true); err != nil {
		return err
	}
	key, err := ll.targetKey(targetRow)
	if err != nil {
		return err
	}
	ll.targets = append(ll.targets, 0)
	copy(ll.targets[i+1:], ll.targets[i:])
	ll.targets[i] = key
	ll.touch()
	return nil
}

func (ll *linkList) Set(i, targetRow int) error {
	ll.origin.g.mu.Lock()
	defer ll.origin.g.mu.Unlock()
	if err := ll.checkIndex(i, false); err != nil {
		return err
	}
	key, err := ll.targetKey(targetRow)
	if err != nil {
		return err
	}
	ll.targets[i] = key
	ll.touch()
	return nil
}

func (ll *linkList) Remove(i int) error {
	ll.origin.g.mu.Lock()
	defer ll.origin.g.mu.Unlock()
	if err := ll.checkIndex(i, false); err != nil {
		return err
	}
	ll.targets = append(ll.targets[:i], ll.targets[i+1:]...)
	ll.touch()
	return nil
}

// Move moves the link at from so that it ends up at position to
func (ll *linkList) Move(from, to int) error {
	ll.origin.g.mu.Lock()
	defer ll.origin.g.mu.Unlock()
	if err := ll.checkIndex(from, false); err != nil {
		return err
	}
	if err := ll.checkIndex(to, false); err != nil {
		return err
	}
	if from == to {
		return nil
	}

	key := ll.targets[from]
	if from < to {
		copy(ll.targets[from:to], ll.targets[from+1:to+1])
	} else {
		copy(ll.targets[to+1:from+1], ll.targets[to:from])
	}
	ll.targets[to] = key
	ll.touch()
	return nil
}

func (ll *linkList) Swap(a, b int) error {
	ll.origin.g.mu.Lock()
	defer ll.origin.g.mu.Unlock()
	if err := ll.checkIndex(a, false); err != nil {
		return err
	}
	if err := ll.checkIndex(b, false); err != nil {
		return err
	}
	if a == b {
		return nil
	}
	ll.targets[a], ll.targets[b] = ll.targets[b], ll.targets[a]
	ll.touch()
	return nil
}

func (ll *linkList) Clear() error {
	ll.origin.g.mu.Lock()
	defer ll.origin.g.mu.Unlock()
	if !ll.attached {
		return db.ErrDetached
	}
	ll.targets = nil
	ll.touch()
	return nil
}

// RemoveAllTargetRows deletes every linked row from the target table.
// Removing the rows also removes them from this list.
func (ll *linkList) RemoveAllTargetRows() error {
	ll.origin.g.mu.Lock()
	defer ll.origin.g.mu.Unlock()
	if !ll.attached {
		return db.ErrDetached
	}

	target := ll.target()
	keys := make([]db.RowKey, len(ll.targets))
	copy(keys, ll.targets)
	for _, k := range keys {
		// a row linked twice is already gone on the second visit
		if pos := target.position(k); pos != db.NotFound {
			target.removeRow(pos)
		}
	}
	ll.targets = nil
	ll.touch()
	return nil
}

func (ll *linkList) Where() db.Query {
	return &query{t: ll.target(), restrict: ll}
}
