// Package testutil provides isolated environments for tests that touch
// the user root, XDG directories or the network.
//
// Key components:
//   - Environment: temp user root plus XDG state and cache dirs, wired
//     through the environment variables the paths package reads
//   - FreePort: a TCP port nothing listens on
//
// Each Environment is torn down by t.Cleanup; tests using it must not
// run in parallel since they change process environment variables.
package testutil
