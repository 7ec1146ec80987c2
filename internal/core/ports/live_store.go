package ports

// LiveStore holds the in-flight, non-durable state shared between request
// handling and trigger evaluation.
type LiveStore interface {
	SwitchLocks() SwitchLockStore
}

// SwitchLockStore provides per-switch mutual exclusion. Every
// read-modify-write on a switch record holds that id's lock for its whole
// duration; no caller may hold more than one id's lock at a time.
type SwitchLockStore interface {
	// Lock blocks until the id's lock is held and returns the release func.
	Lock(id string) (release func())
}
