/*
Package notify implements change notifications for collections.

A Coordinator exists once per group in the process (see For). It owns a lock-free
event queue and a single worker goroutine. Sessions push an event for every committed
write transaction; the worker then reruns every registered Notifier, which captures the
row keys and row versions of its collection through a SourceFunc.

Notifiers are interned per collection and session (Coordinator.NotifierFor), so every
callback registered on the same collection shares one notifier. Each callback remembers
the rows it was last given. On delivery (Coordinator.Deliver, called from the session
goroutine during session.Refresh) the difference to the latest snapshot is computed as a
ChangeSet:

	Deletions:     indices in the old collection
	Insertions:    indices in the new collection
	Modifications: indices in the new collection

Moves are reported as a deletion plus an insertion, the rows that keep their relative
order are found with a longest increasing subsequence pass.

The first delivery to a callback is always an empty change set. Once a collection is
detached, every callback receives one last change set deleting all rows and is never
called again.

Usage:

	coord := notify.For(group)
	n := coord.NotifierFor(list.Identity(), 0, sessionID, source)
	token := n.AddCallback(func(cs notify.ChangeSet) { ... })
	defer token.Unregister()
*/
package notify
