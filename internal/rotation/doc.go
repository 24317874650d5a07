// Package rotation swaps a random selection of media folders into a curated
// destination that a Plex library watches.
//
// A run moves through a fixed sequence of states. The Runner signs in, empties
// the destination with the Reconciler, asks the server to rescan, draws a
// sample of source folders with the Sampler, copies or links them with the
// Materializer, and asks for a second rescan. Every step is fatal on error
// except listing library sections, which only warns.
package rotation
