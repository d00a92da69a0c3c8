// Package query implements InteropQuery: typed query messages exchanged with
// the other side, the handlers that answer them and the correlation of
// asynchronous responses with the queries that caused them.
//
// A query sent over the event path stays pending until its response
// arrives. There is no timeout: a response that never comes leaves the
// entry pending for the life of the [Correlator]. [Pending.Wait] only
// bounds how long one caller waits.
package query
