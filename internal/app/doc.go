// Package app provides the application service layer.
//
// Service is the update ingress: it validates a submitted snapshot, replaces the stored
// value and then publishes it to the hub, in that order, so a viewer woken by the
// publish never reads an older snapshot from the store.
package app
