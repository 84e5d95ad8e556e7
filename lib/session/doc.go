// Package session provides goroutine confined sessions on a group.
//
// A session is opened by one goroutine and may only be used by that goroutine.
// It offers write transactions (BeginWrite, CommitWrite, Write) serialized across
// all sessions of the group and delivers change notifications on Refresh.
//
// Example:
//
//	s, err := session.Open(group, notify.For(group), common.DefaultConfig())
//	if err != nil { ... }
//	defer s.Close()
//
//	err = s.Write(func() error {
//		return list.Add(42)
//	})
package session
