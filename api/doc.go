// Package api defines the shared contracts of the hioload-co runtime:
// coroutine handles and lifecycle states, the scheduler park/unpark
// contract, reactor and timer interfaces, stack pooling, and the common
// error taxonomy.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Everything in this package is dependency-free so that every other
// package of the runtime can import it without cycles.
package api
