// Package service holds the callable service registry and the directory of
// services advertised by the other side of the interop boundary.
//
// A registration binds a [contract.Descriptor] to an [EventHandler]
// (fire-and-forget), a [MethodHandler] (request/response) or both:
//
//	registry := service.NewRegistry()
//	registry.RegisterEvent(desc, service.EventFunc(func(ctx context.Context, payload string) error {
//	    return nil
//	}))
//
// Registering the same descriptor twice replaces the previous handler.
package service
