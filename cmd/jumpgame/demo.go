package main

import (
	"time"

	"github.com/patka817/jump-game/pkg/protocol"
	"github.com/patka817/jump-game/pkg/snapshot"
)

// The demo scene stands in for a real game engine integration: a flat world
// node holding one sprite per player and a title text. It exists so a hosted
// session has something to snapshot and broadcast each tick.

const (
	groundY   = 400.0
	moveSpeed = 160.0 // px/s
	jumpBoost = 90.0
)

type demoWorld struct {
	title   *demoText
	players map[string]*demoSprite
	order   []snapshot.Node
}

type demoSprite struct {
	x, y  float64
	key   string
	frame int
}

func (s *demoSprite) ChildNodes() []snapshot.Node { return nil }

func (s *demoSprite) SpriteState() snapshot.SpriteRecord {
	return snapshot.SpriteRecord{
		X: s.x, Y: s.y, Key: s.key, Frame: s.frame,
		Scale: snapshot.Vec2{X: 1, Y: 1},
	}
}

// demoText is a specialization of demoSprite, like text nodes in the real
// rendering model: it satisfies both capabilities and relies on the codec's
// text-first classification.
type demoText struct {
	demoSprite
	text string
}

func (t *demoText) TextState() snapshot.TextRecord {
	return snapshot.TextRecord{
		X: t.x, Y: t.y, Text: t.text,
		Style: map[string]any{"font": "32px Arial", "fill": "#ffffff"},
	}
}

func newDemoScene(code string) *demoWorld {
	return &demoWorld{
		title:   &demoText{demoSprite: demoSprite{x: 20, y: 20, key: "title"}, text: "Room " + code},
		players: make(map[string]*demoSprite),
	}
}

func (w *demoWorld) ChildNodes() []snapshot.Node { return w.order }

// advance moves every player sprite according to its current input
func (w *demoWorld) advance(dt time.Duration, players map[string]protocol.InputState) {
	step := moveSpeed * dt.Seconds()
	x := 60.0
	for name, input := range players {
		s := w.players[name]
		if s == nil {
			s = &demoSprite{x: x, y: groundY, key: "player"}
			w.players[name] = s
		}
		x += 80

		if pressed(input, "left") {
			s.x -= step
		}
		if pressed(input, "right") {
			s.x += step
		}
		s.y = groundY
		if pressed(input, "jump") {
			s.y = groundY - jumpBoost
		}
	}
	for name := range w.players {
		if _, still := players[name]; !still {
			delete(w.players, name)
		}
	}

	w.order = w.order[:0]
	w.order = append(w.order, snapshot.Node(w.title))
	for _, s := range w.players {
		w.order = append(w.order, s)
	}
}

func (w *demoWorld) capture() *snapshot.GameSnapshot {
	return snapshot.Capture(w)
}

func pressed(in protocol.InputState, key string) bool {
	v, ok := in[key].(bool)
	return ok && v
}
