// Package preflight provides readiness checks for the filesystem paths and the
// media server that a rotation depends on.
//
// These checks run in two contexts:
//   - The rotation runner calls Directories before signing in. If any check
//     fails, the run stops before the destination is touched.
//   - The CLI "plexrotate config validate" command renders every check,
//     including server reachability, as a status table.
package preflight
