// Package watchdog supervises the connected client and restarts the native
// application when it goes quiet or drops its connection.
//
// The server side arms one deadline per client session. Every
// Application.NotifyAlive frame pushes the deadline out; the deadline
// elapsing or the session disconnecting triggers exactly one restart, after
// which the session is no longer supervised. The client side runs a
// Notifier that emits the alive frame on an interval shorter than the
// server timeout.
package watchdog
