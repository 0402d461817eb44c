// Package broadcast fans score updates out to connected viewers.
//
// The Hub owns the set of live subscriptions. Each subscription has a bounded queue; when
// a queue is full the new message is dropped for that subscriber only, so Publish never
// blocks on a slow viewer. A Session bridges one WebSocket to a subscription with a read
// pump and a write pump; the first pump to stop tears the session down.
package broadcast
