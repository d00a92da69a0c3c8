// Package browserinterop implements the messaging core between a PLM web
// client and the application hosting it.
//
// # Overview
//
// Both sides expose named, versioned services. A handshake exchanges
// interop versions and service lists; after it, either side can invoke the
// other's methods and events through a transport.
//
// # Basic Usage
//
//	client, host := transport.Pair(nil, nil)
//	host.Registry().RegisterMethod(desc, service.MethodFunc(handle))
//
//	_ = client.Handshake(ctx)
//	resp, err := client.CallMethod(ctx, desc, payload)
//
// # Services
//
//	// Queries correlated by message id
//	query.Install(peer, handlers, correlator)
//
//	// Selection in both directions
//	selection.Install(peer, selection.NewDefaultRegistry(peer.Bus(), peer.AppContext()))
//	provider := selection.NewProvider(peer, objref.NewDefaultRegistry(nil))
//
//	// Host navigation requests
//	location.Install(peer, nil)
//
// # Transports
//
// [transport.Stream] carries frames over stdio, [transport.Remote] joins a
// [relay] room over a websocket and [guest] hosts client bundles compiled
// to WebAssembly.
//
// See the [interop], [contract], [query], [selection] and [transport]
// packages for detailed API documentation.
package browserinterop
