/*
Package projector resolves the handlers registered for a message and invokes them in order
against a caller-owned connection. It is a pure propagation layer: the first resolver or
handler error stops the chain and is returned unchanged, and the context is forwarded to
every handler without being checked in between.
*/
package projector
