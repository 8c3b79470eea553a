// Package keys manages the secp256k1 key-pair that identifies a node as the
// author of the actions it writes.
//
// The public key, in compressed form and 0X-prefixed hex, is the author string
// stamped on every action. The private key lives in a plain hex file in the
// data directory, readable by the owner only.
package keys
