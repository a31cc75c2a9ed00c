// Package storetest is a conformance suite shared by every store.Store
// backend: sqlite (embedded) and postgres (server) each run the exact
// same TestXxx functions against their own freshly started instance, so
// the two backends cannot silently diverge in behavior.
package storetest
