// Package version reports the ledgerctl build.
//
// Set the variables with ldflags:
//
//	go build -ldflags "-X github.com/rickgao/pokerledger/internal/version.Version=1.2.0 \
//	                   -X github.com/rickgao/pokerledger/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/pokerledger/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	  ./cmd/ledgerctl
package version

import "strings"

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns the version, followed by commit and build time when known.
func String() string {
	var b strings.Builder
	b.WriteString(Version)
	if Commit != "" && Commit != "unknown" {
		b.WriteString(" (" + Commit + ")")
	}
	if BuildTime != "" && BuildTime != "unknown" {
		b.WriteString(" built " + BuildTime)
	}
	return b.String()
}
