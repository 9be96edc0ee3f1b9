// Package snapshot extracts a transmittable description of a live scene graph.
// The host captures one snapshot per tick and broadcasts it whole; clients
// render it statelessly, so no diffing against previous ticks is needed.
package snapshot

// Vec2 is a two-component point, used for sprite scale
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SpriteRecord is the transmittable state of one sprite node
type SpriteRecord struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Key   string  `json:"key"`
	Frame int     `json:"frame"`
	Scale Vec2    `json:"scale"`
}

// TextRecord is the transmittable state of one text node
type TextRecord struct {
	X     float64        `json:"x"`
	Y     float64        `json:"y"`
	Text  string         `json:"text"`
	Style map[string]any `json:"style"`
}

// GameSnapshot is a full, non-delta description of the renderable state at
// capture time. It shares no memory with the scene graph it was taken from.
type GameSnapshot struct {
	Sprites []SpriteRecord `json:"sprites"`
	Texts   []TextRecord   `json:"texts"`
}

// Node is the minimal capability every scene graph node exposes
type Node interface {
	ChildNodes() []Node
}

// SpriteNode is a node with renderable sprite state
type SpriteNode interface {
	Node
	SpriteState() SpriteRecord
}

// TextNode is a node with renderable text state. In the underlying rendering
// model text is a specialization of sprite, so a TextNode typically satisfies
// SpriteNode as well.
type TextNode interface {
	Node
	TextState() TextRecord
}

// Kind is the classification of a scene graph node
type Kind int

const (
	KindOther Kind = iota
	KindSprite
	KindText
)

// Classify resolves a node to exactly one kind. Text is tested before sprite:
// every text node also satisfies the sprite capability, and checking in the
// wrong order would misclassify text as plain sprites and drop their
// text/style fields.
func Classify(n Node) Kind {
	if _, ok := n.(TextNode); ok {
		return KindText
	}
	if _, ok := n.(SpriteNode); ok {
		return KindSprite
	}
	return KindOther
}

// Capture walks the scene graph from root and accumulates sprite and text
// records. Traversal is an explicit stack rather than recursion, so deep
// graphs cost no call stack. Children are visited regardless of whether their
// parent matched: containers commonly hold renderable descendants. Traversal
// order is not guaranteed stable across ticks.
func Capture(root Node) *GameSnapshot {
	snap := &GameSnapshot{
		Sprites: []SpriteRecord{},
		Texts:   []TextRecord{},
	}
	if root == nil {
		return snap
	}

	stack := []Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}

		switch Classify(n) {
		case KindText:
			snap.Texts = append(snap.Texts, n.(TextNode).TextState())
		case KindSprite:
			snap.Sprites = append(snap.Sprites, n.(SpriteNode).SpriteState())
		}

		stack = append(stack, n.ChildNodes()...)
	}
	return snap
}
