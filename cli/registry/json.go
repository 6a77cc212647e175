package registry

import (
	"fmt"
	"io"

	"github.com/abelian-network/abelian-go/pkg/encoding/address"
	"github.com/abelian-network/abelian-go/pkg/registry"
	"github.com/abelian-network/abelian-go/pkg/util"
	json "github.com/nspcc-dev/go-ordered-json"
)

func printJSON(w io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func receiptToJSON(r *registry.Receipt) json.OrderedObject {
	res := json.OrderedObject{
		{Key: "txhash", Value: r.TxHash.StringPrefixed()},
		{Key: "block", Value: r.Block},
		{Key: "method", Value: r.Method.String()},
		{Key: "vmstate", Value: r.State.String()},
	}
	if r.State == registry.FaultState {
		res = append(res, json.OrderedObject{{Key: "exception", Value: r.FaultException}}...)
	}
	if r.TokenID != nil {
		res = append(res, json.OrderedObject{{Key: "tokenid", Value: r.TokenID.ToBig().String()}}...)
	}
	if r.Method == registry.MethodAddSupportedChainID && r.State == registry.HaltState {
		res = append(res, json.OrderedObject{{Key: "added", Value: r.Added}}...)
	}
	if r.Published {
		res = append(res, json.OrderedObject{{Key: "sequence", Value: r.Sequence}}...)
	}
	events := make([]json.OrderedObject, 0, len(r.Notifications))
	for i := range r.Notifications {
		events = append(events, notificationToJSON(&r.Notifications[i]))
	}
	return append(res, json.OrderedObject{{Key: "notifications", Value: events}}...)
}

func notificationToJSON(n *registry.Notification) json.OrderedObject {
	res := json.OrderedObject{{Key: "name", Value: n.Name}}
	if !n.Node.IsZero() {
		res = append(res, json.OrderedObject{{Key: "node", Value: n.Node.StringPrefixed()}}...)
	}
	if !n.Owner.IsZero() {
		res = append(res, json.OrderedObject{{Key: "owner", Value: address.Uint160ToString(n.Owner)}}...)
	}
	if !n.TokenID.IsZero() {
		res = append(res, json.OrderedObject{{Key: "tokenid", Value: n.TokenID.ToBig().String()}}...)
	}
	if n.ChainID != 0 {
		res = append(res, json.OrderedObject{{Key: "chainid", Value: n.ChainID}}...)
	}
	return res
}

func recordToJSON(node util.Uint256, rec *registry.Record) json.OrderedObject {
	res := json.OrderedObject{
		{Key: "node", Value: node.StringPrefixed()},
		{Key: "state", Value: rec.State().String()},
	}
	if !rec.Owner.IsZero() {
		res = append(res, json.OrderedObject{{Key: "owner", Value: address.Uint160ToString(rec.Owner)}}...)
	}
	if !rec.TokenID.IsZero() {
		res = append(res, json.OrderedObject{{Key: "tokenid", Value: rec.TokenID.ToBig().String()}}...)
	}
	return res
}
