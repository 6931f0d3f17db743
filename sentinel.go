package skiplist

// boundKind classifies a sentinel bound relative to every real key.
type boundKind int8

const (
	boundNegInf boundKind = -1
	boundReal   boundKind = 0
	boundPosInf boundKind = 1
)

// bound wraps a user key with an explicit -infinity/+infinity marker, so the
// lock-based and lock-free variants can give head and tail real nodes with
// comparable keys instead of special-casing nil everywhere. This is the Go
// stand-in for the sentinel keys described in spec §3 ("Two sentinel keys,
// -infinity and +infinity").
type bound[K any] struct {
	kind boundKind
	key  K
}

func negInf[K any]() bound[K] { return bound[K]{kind: boundNegInf} }
func posInf[K any]() bound[K] { return bound[K]{kind: boundPosInf} }
func realKey[K any](k K) bound[K] { return bound[K]{kind: boundReal, key: k} }

// compareBound orders two bounds, delegating to cmp only when both are real
// keys.
func compareBound[K any](cmp Comparator[K], a, b bound[K]) int {
	if a.kind != boundReal || b.kind != boundReal {
		if a.kind == b.kind {
			return 0
		}
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	return cmp(a.key, b.key)
}
