// Package prof profiles runs of the HPI stack, such as an hpictl boot of
// every adapter on the bus.
//
// It is conditionally compiled using the "profile" build tag:
//
//	go build -tags profile ./cmd/hpictl
//	go test -tags profile ./pkg/prof
//
// When built without the "profile" tag, Start and Stop do nothing, so the
// calls can stay in place without overhead in production.
//
// # Sessions
//
// A session streams CPU samples while it runs and writes the snapshot
// profiles when it stops:
//
//	s, err := prof.Start(prof.Config{CPU: "cpu.prof", Heap: "heap.prof"})
//	if err != nil {
//	    return err
//	}
//	defer s.Stop()
//
// Requesting a block or mutex profile enables the matching runtime sampling
// for the length of the session. Only one session runs at a time; Start
// returns [ErrActive] otherwise.
package prof
