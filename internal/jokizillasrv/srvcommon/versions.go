// Package srvcommon holds values shared across the Jokizilla server packages: build
// versions, request context keys and the authenticated principal.
package srvcommon

// ServerVersion is overridden at build time with -ldflags "-X ...srvcommon.ServerVersion=...".
var ServerVersion = "0.1.0"

const (
	ApiVersion    = "1.0"
	ODataVersion  = "4.0"
	ConfigVersion = "0.1"
)
