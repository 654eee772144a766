// Package security inspects the TLS certificate served by the vital-sign
// source endpoint.
package security
