// Package scaffold generates new repositories and scripts from embedded
// templates. It powers the "tutils new" and "tutils repository create"
// commands, producing a script descriptor plus a starter entry point in the
// chosen language and registering the script in its repository descriptor.
package scaffold
