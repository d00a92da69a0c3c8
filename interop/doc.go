// Package interop connects a local service registry to the other side of
// the interop boundary.
//
// A [Peer] plays either the client role (the embedded web application) or
// the host role (the native shell). Inbound bio function calls arrive
// through [Peer.Dispatch]; outbound calls leave through a [Transport]:
//
//	peer := interop.New(tr,
//	    interop.WithRole(interop.RoleClient),
//	    interop.WithLogger(logger),
//	)
//	peer.Registry().RegisterEvent(desc, handler)
//
//	proxy := peer.Proxy(contract.NewDescriptor(contract.HSLoggerForward, contract.Version2014_02))
//	err := proxy.Fire(ctx, contract.LoggerEntry{Level: "INFO", FormatMessage: "ready"})
//
// Handler failures are logged and never travel back over the transport.
package interop
