// Package store ties a group, its notification coordinator and the configuration together.
// It is the entry point for applications: it creates the group through a GroupFactory,
// restores it from the configured data file and hands out sessions.
//
// Key Components:
//
//   - Store: owns the group and the coordinator. Open loads Config.DataFile when the file
//     exists, Save writes the group back (through a temporary file and a rename), and
//     Close saves when Config.SaveOnClose is set before it shuts the coordinator and the
//     group down.
//
//   - Sessions: NewSession opens a session bound to the calling goroutine. Sessions are
//     not tracked by the store; every goroutine closes its own session.
//
//   - Error System: failures are reported as *Error values carrying a RetCode and,
//     where there is one, the underlying cause. Use errors.Is with ErrInternal,
//     ErrUnsupportedOperation or ErrInvalidOperation to check the code.
//
// Example:
//
//	st, err := store.Open(func() db.Group { return maple.NewMapleGroup(nil) }, cfg)
//	if err != nil { ... }
//	defer st.Close()
//
//	s, err := st.NewSession()
//	if err != nil { ... }
//	defer s.Close()
package store
