// Package chat orchestrates the end-to-end client flow.
//
// It ties login and credential persistence to the key codec, drives the
// live session, switches and seeds conversations, and encrypts and echoes
// outbound messages. The CLI and TUI only ever talk to this service.
package chat
