// Package contract defines the wire vocabulary shared by the client and the
// host: service descriptors, the named FQN and version constants, the closed
// set of message kinds and the bio call envelope.
//
// Every message round-trips through JSON with its field names intact. The
// host and the client are versioned independently and agree on wire shape
// by convention only, so no field is ever renamed.
//
//	entry := contract.LoggerEntry{Level: "info", FormatMessage: "hello"}
//	payload, _ := contract.Encode(entry)
//	// {"Level":"info","FormatMessage":"hello"}
package contract
