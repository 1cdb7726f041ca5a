// Package store provides the in-memory hash map that backs the DriftKV server.
//
// The map is built for a single-threaded server whose worst-case latency must
// stay bounded while the table grows from thousands to millions of keys.
// Instead of rehashing every key in one pass when the table fills up, the map
// keeps two bucket arrays at once: a primary table receiving all new inserts
// and a stale table that is drained a few nodes at a time. Every Lookup,
// Insert, and Delete moves at most ResizingWork nodes from stale to primary
// before doing its own work, so the cost of growing is spread across many
// operations and no single call ever pays for a full rehash.
//
// Example usage:
//
//	m := store.New()
//	h := xxhash.Sum64String("user:123")
//	m.Insert(&store.Node{Hash: h, Key: "user:123", Value: "john_doe"})
//
//	if n := m.Lookup(h, store.ByKey("user:123")); n != nil {
//		fmt.Println(n.Value)
//	}
//
// The map is not safe for concurrent use. In DriftKV it is owned by the
// reactor goroutine and never touched from anywhere else, which is the whole
// synchronization story by design.
package store

// Tuning defaults. Callers may override them through NewWith, but whatever
// values are chosen, the migration work per operation stays constant and
// independent of table size.
const (
	// DefaultInitialCap is the bucket count of a freshly allocated primary
	// table. Must be a power of two.
	DefaultInitialCap = 4

	// DefaultMaxLoadFactor is the average chain length that triggers a
	// resize: once primary holds more than buckets*factor nodes, the
	// primary becomes stale and a table of twice the size takes its place.
	DefaultMaxLoadFactor = 8

	// DefaultResizingWork is the maximum number of nodes moved from the
	// stale table to the primary table per Lookup/Insert/Delete call.
	DefaultResizingWork = 128
)

// Node is a single entry in the map. The chain link and the precomputed hash
// live directly alongside the key and value, so the map never has to recover
// an owning record from a raw link pointer.
//
// Hash must be computed by the caller before Insert and must match the hash
// passed to Lookup/Delete for the same key.
type Node struct {
	next  *Node
	Hash  uint64 // precomputed hash of Key
	Key   string
	Value string
}

// ByKey returns an equality predicate matching nodes whose key equals key.
// It is the comparator used for all string-keyed operations in DriftKV;
// callers with different payload semantics can supply their own.
func ByKey(key string) func(*Node) bool {
	return func(n *Node) bool { return n.Key == key }
}

// table is one fixed-size bucket array with chained nodes. The bucket count
// is a power of two so mask replaces the modulo on every probe.
type table struct {
	buckets []*Node
	mask    uint64
	size    int
}

func newTable(capacity int) *table {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("store: table capacity must be a power of two")
	}
	return &table{
		buckets: make([]*Node, capacity),
		mask:    uint64(capacity - 1),
	}
}

// insert links n at the head of its bucket chain. O(1).
func (t *table) insert(n *Node) {
	pos := n.Hash & t.mask
	n.next = t.buckets[pos]
	t.buckets[pos] = n
	t.size++
}

// lookup returns the address of the link pointing at the first matching
// node, or nil. Returning the link rather than the node lets detach unlink
// without re-walking the chain.
func (t *table) lookup(hash uint64, eq func(*Node) bool) **Node {
	if t == nil {
		return nil
	}
	link := &t.buckets[hash&t.mask]
	for *link != nil {
		if (*link).Hash == hash && eq(*link) {
			return link
		}
		link = &(*link).next
	}
	return nil
}

// detach unlinks and returns the node the given link points at.
func (t *table) detach(link **Node) *Node {
	n := *link
	*link = n.next
	n.next = nil
	t.size--
	return n
}

// Map is a hash map with incremental rehashing. The zero value is not usable;
// construct with New or NewWith.
//
// primary is the current table receiving inserts. stale is the previous table
// while a resize is in flight, drained by migrate; it is nil otherwise.
// scanPos marks how far draining has progressed through the stale buckets and
// only ever advances until the next resize begins.
type Map struct {
	primary *table
	stale   *table
	scanPos uint64

	initialCap    int
	maxLoadFactor int
	resizingWork  int
}

// New creates an empty Map with the default tuning parameters.
// The primary table is allocated lazily on the first insert.
func New() *Map {
	return NewWith(0, 0, 0)
}

// NewWith creates an empty Map with explicit tuning parameters. Values <= 0
// fall back to the package defaults. initialCap is rounded up to the next
// power of two.
func NewWith(initialCap, maxLoadFactor, resizingWork int) *Map {
	if initialCap <= 0 {
		initialCap = DefaultInitialCap
	}
	for initialCap&(initialCap-1) != 0 {
		initialCap++
	}
	if maxLoadFactor <= 0 {
		maxLoadFactor = DefaultMaxLoadFactor
	}
	if resizingWork <= 0 {
		resizingWork = DefaultResizingWork
	}
	return &Map{
		initialCap:    initialCap,
		maxLoadFactor: maxLoadFactor,
		resizingWork:  resizingWork,
	}
}

// migrate moves up to resizingWork nodes from the stale table to the primary
// table, scanning forward from scanPos and skipping empty buckets. When the
// stale table is fully drained it is released and the resize is over.
//
// Called at the start of every Lookup, Insert, and Delete; a no-op when no
// resize is in flight.
func (m *Map) migrate() {
	if m.stale == nil {
		return
	}

	moved := 0
	for moved < m.resizingWork && m.stale.size > 0 {
		link := &m.stale.buckets[m.scanPos]
		if *link == nil {
			m.scanPos++
			continue
		}
		m.primary.insert(m.stale.detach(link))
		moved++
	}

	if m.stale.size == 0 {
		m.stale = nil
	}
}

// triggerResize demotes the primary table to stale and allocates a new
// primary with double the bucket count. The scan cursor restarts at zero.
func (m *Map) triggerResize() {
	m.stale = m.primary
	m.primary = newTable(len(m.stale.buckets) * 2)
	m.scanPos = 0
}

// Lookup performs one migration step, then probes the primary table and,
// failing that, the stale table. Returns the first node on the bucket chain
// whose hash matches and for which eq returns true, or nil.
func (m *Map) Lookup(hash uint64, eq func(*Node) bool) *Node {
	m.migrate()

	link := m.primary.lookup(hash, eq)
	if link == nil {
		link = m.stale.lookup(hash, eq)
	}
	if link == nil {
		return nil
	}
	return *link
}

// Insert performs one migration step and links n into the primary table.
// If no resize is already in flight and the primary's load factor crosses the
// threshold, a new resize begins: the fresh stale table starts draining on
// the next map operation.
//
// Insert does not check for duplicates; callers wanting update-in-place
// semantics should Lookup first, as the command layer does.
func (m *Map) Insert(n *Node) {
	m.migrate()

	if m.primary == nil {
		m.primary = newTable(m.initialCap)
	}
	m.primary.insert(n)

	if m.stale == nil && m.primary.size > len(m.primary.buckets)*m.maxLoadFactor {
		m.triggerResize()
	}
}

// Delete performs one migration step, then unlinks and returns the first
// matching node from the primary or stale table. Returns nil if no node
// matches.
func (m *Map) Delete(hash uint64, eq func(*Node) bool) *Node {
	m.migrate()

	if link := m.primary.lookup(hash, eq); link != nil {
		return m.primary.detach(link)
	}
	if link := m.stale.lookup(hash, eq); link != nil {
		return m.stale.detach(link)
	}
	return nil
}

// Len returns the number of live nodes across both tables.
func (m *Map) Len() int {
	n := 0
	if m.primary != nil {
		n += m.primary.size
	}
	if m.stale != nil {
		n += m.stale.size
	}
	return n
}

// StaleLen returns the number of nodes still waiting in the stale table,
// or zero when no resize is in flight.
func (m *Map) StaleLen() int {
	if m.stale == nil {
		return 0
	}
	return m.stale.size
}

// Resizing reports whether an incremental resize is currently in flight.
func (m *Map) Resizing() bool {
	return m.stale != nil
}
