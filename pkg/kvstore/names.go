// Package kvstore implements the durable, ordered key-value layer Nitrite
// collections and indexes are built on, backed by go.etcd.io/bbolt. Each
// map is one bucket in a single keyspace file; see DESIGN.md for why bbolt
// stands in for an LSM engine here.
package kvstore

import "strings"

// encodeName maps a map name to a bucket name safe for bbolt. bbolt buckets
// tolerate any byte sequence, so this encoding is not strictly load-bearing
// — it is kept anyway so the reserved internal separators ("|" between a
// collection and its index field, "+" for keyed repositories) never
// collide with a bucket name a caller chose directly.
func encodeName(name string) string {
	if !strings.ContainsAny(name, "|+") &&
		!strings.Contains(name, "_X_") && !strings.Contains(name, "_P_") && !strings.Contains(name, "_K_") {
		return name
	}
	r := strings.NewReplacer(
		"_X_", "_XX_",
		"_P_", "_XP_",
		"_K_", "_XK_",
	)
	name = r.Replace(name)
	name = strings.ReplaceAll(name, "|", "_P_")
	name = strings.ReplaceAll(name, "+", "_K_")
	return name
}

// decodeName reverses encodeName. The order matters: markers must be
// unescaped before the pipe/plus substitutions are restored, or "_XP_"
// would wrongly decode through the "_P_" -> "|" step.
func decodeName(name string) string {
	if !strings.Contains(name, "_P_") && !strings.Contains(name, "_K_") && !strings.Contains(name, "_X") {
		return name
	}
	name = strings.ReplaceAll(name, "_XX_", "\x00X\x00")
	name = strings.ReplaceAll(name, "_XP_", "\x00P\x00")
	name = strings.ReplaceAll(name, "_XK_", "\x00K\x00")
	name = strings.ReplaceAll(name, "_P_", "|")
	name = strings.ReplaceAll(name, "_K_", "+")
	name = strings.ReplaceAll(name, "\x00X\x00", "_X_")
	name = strings.ReplaceAll(name, "\x00P\x00", "_P_")
	name = strings.ReplaceAll(name, "\x00K\x00", "_K_")
	return name
}
