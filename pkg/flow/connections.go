package flow

// HandleKey addresses one handle. An empty HandleID stands for the node's
// default handle of that type.
type HandleKey struct {
	NodeID   string
	Type     HandleType
	HandleID string
}

// ConnectionLookup indexes edges by the handles they touch. Each edge is
// reachable through (node), (node, type) and (node, type, handle).
type ConnectionLookup struct {
	byHandle map[HandleKey]map[string]HandleConnection
	byType   map[HandleKey]map[string]HandleConnection
	byNode   map[string]map[string]HandleConnection
}

// NewConnectionLookup returns an empty index.
func NewConnectionLookup() *ConnectionLookup {
	c := &ConnectionLookup{}
	c.reset()
	return c
}

func (c *ConnectionLookup) reset() {
	c.byHandle = make(map[HandleKey]map[string]HandleConnection)
	c.byType = make(map[HandleKey]map[string]HandleConnection)
	c.byNode = make(map[string]map[string]HandleConnection)
}

// Reindex rebuilds the index from edges. Edges whose source or target is
// not in nodes are skipped: an edge update can arrive before its nodes.
func (c *ConnectionLookup) Reindex(edges []Edge, nodes *NodeLookup) {
	c.reset()
	for _, e := range edges {
		if nodes != nil && (!nodes.Has(e.Source) || !nodes.Has(e.Target)) {
			continue
		}
		hc := HandleConnection{Connection: ConnectionOf(e), EdgeID: e.ID}
		c.add(HandleKey{NodeID: e.Source, Type: HandleSource, HandleID: e.SourceHandle}, hc)
		c.add(HandleKey{NodeID: e.Target, Type: HandleTarget, HandleID: e.TargetHandle}, hc)
	}
}

func (c *ConnectionLookup) add(k HandleKey, hc HandleConnection) {
	insert(c.byHandle, k, hc)
	insert(c.byType, HandleKey{NodeID: k.NodeID, Type: k.Type}, hc)
	if c.byNode[k.NodeID] == nil {
		c.byNode[k.NodeID] = make(map[string]HandleConnection)
	}
	c.byNode[k.NodeID][hc.EdgeID] = hc
}

func insert(m map[HandleKey]map[string]HandleConnection, k HandleKey, hc HandleConnection) {
	if m[k] == nil {
		m[k] = make(map[string]HandleConnection)
	}
	m[k][hc.EdgeID] = hc
}

// Get returns the connections touching exactly the handle k, keyed by
// edge id. The returned map must not be modified.
func (c *ConnectionLookup) Get(k HandleKey) map[string]HandleConnection {
	return c.byHandle[k]
}

// NodeConnections returns the connections of a node, optionally narrowed to
// a handle type and handle id. An empty handleType ignores handleID.
func (c *ConnectionLookup) NodeConnections(nodeID string, handleType HandleType, handleID *string) map[string]HandleConnection {
	switch {
	case handleType == "":
		return c.byNode[nodeID]
	case handleID == nil:
		return c.byType[HandleKey{NodeID: nodeID, Type: handleType}]
	default:
		return c.byHandle[HandleKey{NodeID: nodeID, Type: handleType, HandleID: *handleID}]
	}
}

// Len returns the number of indexed handle keys.
func (c *ConnectionLookup) Len() int { return len(c.byHandle) }

// GetConnectedEdges returns the edges touching any of nodeIDs.
func GetConnectedEdges(nodeIDs []string, edges []Edge) []Edge {
	set := make(map[string]struct{}, len(nodeIDs))
	for _, id := range nodeIDs {
		set[id] = struct{}{}
	}
	var out []Edge
	for _, e := range edges {
		_, s := set[e.Source]
		_, t := set[e.Target]
		if s || t {
			out = append(out, e)
		}
	}
	return out
}

// GetOutgoers returns the nodes nodeID has edges to.
func GetOutgoers(nodeID string, nodes *NodeLookup, edges []Edge) []*InternalNode {
	return neighbours(nodeID, nodes, edges, true)
}

// GetIncomers returns the nodes that have edges to nodeID.
func GetIncomers(nodeID string, nodes *NodeLookup, edges []Edge) []*InternalNode {
	return neighbours(nodeID, nodes, edges, false)
}

func neighbours(nodeID string, nodes *NodeLookup, edges []Edge, outgoing bool) []*InternalNode {
	seen := make(map[string]bool)
	var out []*InternalNode
	for _, e := range edges {
		from, to := e.Source, e.Target
		if !outgoing {
			from, to = to, from
		}
		if from != nodeID || seen[to] {
			continue
		}
		if n, ok := nodes.Get(to); ok {
			seen[to] = true
			out = append(out, n)
		}
	}
	return out
}
