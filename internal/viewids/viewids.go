// Package viewids is the canonical, shared numbering for the views the
// built-in modules create, so internal/app can wire modules up without
// them needing to import one another to avoid id collisions.
package viewids

import "github.com/netnexus/controlplane/internal/domain/tree"

const (
	// User is the root view every session starts in.
	User = tree.RootViewID
	// Config is "configure terminal"'s view, owned by the cfg module.
	Config uint32 = 2
	// ConfigIf is "interface <name>"'s view, owned by the ifmgr module.
	ConfigIf uint32 = 3
	// RouterBGP is "router bgp <asn>"'s view, owned by the bgp module.
	RouterBGP uint32 = 4
)
