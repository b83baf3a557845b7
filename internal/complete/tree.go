// Package complete implements incremental autocompletion over an ordered
// word tree.
package complete

// Node is one level of the completion tree. Words keep insertion order so
// the first candidate is deterministic.
type Node struct {
	words    []string
	children map[string]*Node
}

func NewNode() *Node {
	return &Node{children: map[string]*Node{}}
}

// Add appends word if missing and returns its child level.
func (n *Node) Add(word string) *Node {
	if c, ok := n.children[word]; ok {
		return c
	}
	c := NewNode()
	n.words = append(n.words, word)
	n.children[word] = c
	return c
}

// AddPath adds a chain of words, one per level.
func (n *Node) AddPath(words ...string) *Node {
	cur := n
	for _, w := range words {
		cur = cur.Add(w)
	}
	return cur
}

// Child returns the level under word, or nil.
func (n *Node) Child(word string) *Node { return n.children[word] }

// Words returns the candidates at this level in insertion order.
func (n *Node) Words() []string { return append([]string(nil), n.words...) }

func (n *Node) Leaf() bool { return len(n.words) == 0 }

// FromList builds a one-level tree, skipping words in exclude.
func FromList(words []string, exclude ...string) *Node {
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		skip[e] = struct{}{}
	}
	n := NewNode()
	for _, w := range words {
		if _, ok := skip[w]; ok {
			continue
		}
		n.Add(w)
	}
	return n
}
