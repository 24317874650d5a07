// Package plex talks to plex.tv and to a Plex Media Server on behalf of the
// rotation pipeline.
//
// Client covers the three calls a rotation needs: SignIn exchanges account
// credentials for a session token at plex.tv, Sections lists the server's
// library sections for display, and Refresh asks the server to rescan one
// section. Tokens travel in the X-Plex-Token query parameter; errors returned
// from this package never include it.
package plex
