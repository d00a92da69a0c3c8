// Package guest runs a client bundle compiled to WebAssembly (wasip1) and
// connects it to a host-role interop peer.
//
// # Protocol
//
// The guest writes frames to stderr as \x00BIO:{json}\x00 and signals
// readiness with \x00BIO_READY\x00. Other stderr text is kept as output.
// The host answers with one JSON frame per line on the guest's stdin.
// Frames follow transport.Frame.
//
// # Usage
//
//	rt, err := guest.NewRuntime(ctx, guest.WithCacheDir(dir))
//	if err != nil {
//	    return err
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.CompileFile(ctx, "client.wasm")
//	if err != nil {
//	    return err
//	}
//
//	g, err := rt.NewGuest(mod)
//	if err != nil {
//	    return err
//	}
//	host := interop.New(g.Transport(), interop.WithRole(interop.RoleHost))
//	g.Attach(host)
//	if err := g.Start(ctx); err != nil {
//	    return err
//	}
//	err = g.Wait()
package guest
