package writepolicy

import (
	"context"
	"time"
)

/*
This file defines what a "write policy" is.

When a memoized value is computed, it can also be pushed to a shared store so
other instances (or this one after a restart) can reuse it:
- Some want the store updated before the caller gets the value (write-through)
- Some want the caller never to wait for the store (write-back)

Instead of hard-coding one behavior, we define an interface so we can plug in different strategies.
*/

/*
WritePolicy is the contract that all write policies must follow.
Store failures are logged by the policy and never reach the caller.
*/
type WritePolicy interface {

	/*
		OnWrite is called whenever a freshly computed value should be persisted.
	*/
	OnWrite(ctx context.Context, key string, value []byte, ttl time.Duration)

	/*
		Close is called when the application is shutting down.
	*/
	Close()
}

// Kind names a write policy in configuration.
type Kind string

const (
	Through Kind = "through"
	Back    Kind = "back"
)
