// Package scores holds the single authoritative score snapshot of the process.
//
// The Store is an explicitly owned instance passed to whoever needs it; there is
// no package-level state.
package scores
