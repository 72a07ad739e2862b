// Package types defines the Parameter entity, its value type codes, the Store
// interface persistence backends implement, and the standard errors shared by
// every params package.
//
// A Parameter always stores its value as text. The value type code decides
// how that text converts to and from a native Go value; see internal/values
// for the codecs and internal/engine for the typed read and write paths.
package types
