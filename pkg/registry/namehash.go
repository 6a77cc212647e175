package registry

import (
	"strings"

	"github.com/abelian-network/abelian-go/pkg/crypto/hash"
	"github.com/abelian-network/abelian-go/pkg/util"
)

// NameHash derives the node of a dot-separated name. The empty name maps to
// the zero node, every label is hashed into its parent node:
// node(label.rest) = sha256(node(rest) || sha256(label)).
func NameHash(name string) util.Uint256 {
	var node util.Uint256
	if name == "" {
		return node
	}
	labels := strings.Split(strings.ToLower(name), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := hash.Sha256([]byte(labels[i]))
		node = hash.Sha256(append(node.BytesBE(), label.BytesBE()...))
	}
	return node
}
