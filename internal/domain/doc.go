// Package domain defines the core domain types and interfaces.
//
// Score snapshots, credential roles and the small set of contracts shared by the
// hub, the ingress service and the HTTP adapter. No I/O happens here.
package domain
