// Package commands defines the safechat CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - login   Register or log in and store your identity
//   - whoami  Print the stored identity
//   - users   List registered users
//   - chat    Open an interactive conversation with a peer
//   - logout  Forget the stored identity
//
// # Implementation
//
// The root command builds the dependency graph (credential store, API
// client, session machine, chat service) before any subcommand runs, so
// handlers share one app context. The chat command runs a full-screen
// terminal UI; the session pushes store changes into the UI loop via the
// observer hooks.
package commands
