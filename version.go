// Package scripthost hosts external scripts behind named command bindings.
package scripthost

// Version is the scripthost release version.
const Version = "0.1.0"
