package util

import (
	"fmt"

	"github.com/ValentinKolb/dObj/lib/collection"
	"github.com/ValentinKolb/dObj/lib/db"
	"github.com/ValentinKolb/dObj/lib/session"
	"github.com/ValentinKolb/dObj/lib/store"
)

// columns of the workload tables
const (
	ItemValue = iota
	ItemName
	ItemScore
)

const (
	OwnerValues = iota
	OwnerLinks
)

// Workload is a small schema with one owner row holding a primitive list and a
// link list over n items. It is used by the bench and stats commands.
type Workload struct {
	Session *session.Session
	Items   db.Table
	Owners  db.Table
	Values  collection.PrimitiveList[int64]
	Links   collection.List
}

// NewWorkload creates the tables in the store and fills them with n items.
// The session of the workload belongs to the calling goroutine.
func NewWorkload(st *store.Store, n int) (*Workload, error) {
	s, err := st.NewSession()
	if err != nil {
		return nil, err
	}
	w := &Workload{Session: s}

	err = s.Write(func() error {
		group := st.Group()
		if w.Items, err = group.AddTable("bench_items",
			db.ColumnSpec{Name: "value", Kind: db.KindInt},
			db.ColumnSpec{Name: "name", Kind: db.KindString},
			db.ColumnSpec{Name: "score", Kind: db.KindDouble, Nullable: true},
		); err != nil {
			return err
		}
		if w.Owners, err = group.AddTable("bench_owners",
			db.ColumnSpec{Name: "values", Kind: db.KindList, Element: db.KindInt},
			db.ColumnSpec{Name: "links", Kind: db.KindLinkList, Target: "bench_items"},
		); err != nil {
			return err
		}

		owner, err := w.Owners.AddEmptyRow()
		if err != nil {
			return err
		}
		if w.Values, err = collection.PrimitiveListOf[int64](s, w.Owners, OwnerValues, owner); err != nil {
			return err
		}
		if w.Links, err = collection.ListOf(s, w.Owners, OwnerLinks, owner); err != nil {
			return err
		}

		for i := 0; i < n; i++ {
			row, err := w.Items.AddEmptyRow()
			if err != nil {
				return err
			}
			if err := w.Items.Set(ItemValue, row, int64(i)); err != nil {
				return err
			}
			if err := w.Items.Set(ItemName, row, fmt.Sprintf("item-%d", i)); err != nil {
				return err
			}
			if i%2 == 0 {
				if err := w.Items.Set(ItemScore, row, float64(i)/2); err != nil {
					return err
				}
			}
			if err := w.Links.Add(row); err != nil {
				return err
			}
			if err := w.Values.Add(int64(n - i)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return w, nil
}

// Close closes the session of the workload
func (w *Workload) Close() error {
	return w.Session.Close()
}
