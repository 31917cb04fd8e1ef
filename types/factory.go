package types

import "context"

/*
Factory computes a value when the cache does not have it.

This is the "compute if absent" half of GetOrSet:
 1. Cache checks memory → key not found (or expired)
 2. Cache calls the factory
 3. The factory does the expensive work (LLM call, DB query, ...)
 4. Cache stores the result and returns it

A returned error is handed back to the caller untouched and nothing is cached.
*/
type Factory[T any] func(ctx context.Context) (T, error)
