package chat

import (
	"sync"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
)

// Conversation assembles transcript fragments into ordered turns.
//
// At most one turn per role is streaming at a time: a fragment appends
// to the open turn of its role, opening a new one if none is open.
// A turn-complete marker finalizes all open turns at once. Annotations
// attach strictly by turn identity, which keeps late asynchronous
// results landing on the right turn even after newer turns have opened.
type Conversation struct {
	mu    sync.Mutex
	turns []*Turn
	open  map[Role]*Turn
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{open: make(map[Role]*Turn)}
}

// Append adds a transcript fragment to the open turn of the given role,
// opening a new turn if none is streaming. It returns a snapshot of the
// affected turn.
func (c *Conversation) Append(role Role, fragment string) *Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.open[role]
	if t == nil {
		t = newTurn(role)
		c.open[role] = t
		c.turns = append(c.turns, t)
	}
	t.Text += fragment
	return t.clone()
}

// AddText appends an already-complete text turn (a typed submission).
func (c *Conversation) AddText(role Role, text string) *Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := newTurn(role)
	t.Text = text
	t.Streaming = false
	c.turns = append(c.turns, t)
	return t.clone()
}

// FinalizeOpen marks every streaming turn as final and returns
// snapshots of them in creation order.
func (c *Conversation) FinalizeOpen() []*Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	var done []*Turn
	for _, t := range c.turns {
		if t.Streaming {
			t.Streaming = false
			done = append(done, t.clone())
		}
	}
	c.open = make(map[Role]*Turn)
	return done
}

// OpenTurn returns a snapshot of the streaming turn for the role, or
// nil if none is open.
func (c *Conversation) OpenTurn(role Role) *Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.open[role]; t != nil {
		return t.clone()
	}
	return nil
}

// LastUserTurn returns a snapshot of the most recent user turn, open or
// final, or nil if there is none.
func (c *Conversation) LastUserTurn() *Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].Role == RoleUser {
			return c.turns[i].clone()
		}
	}
	return nil
}

// AttachAudio stores the recorded payload on the turn with the given
// ID. It reports whether the turn exists.
func (c *Conversation) AttachAudio(id string, format pcm.Format, wavPayload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.findLocked(id)
	if t == nil {
		return false
	}
	t.Audio = wavPayload
	t.AudioFormat = format
	return true
}

// AttachGrammar attaches a grammar verdict to the turn with the given
// ID. It reports whether the turn exists.
func (c *Conversation) AttachGrammar(id string, v *GrammarVerdict) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.findLocked(id)
	if t == nil {
		return false
	}
	t.Grammar = v
	return true
}

// AttachPronunciation attaches pronunciation feedback to the turn with
// the given ID. It reports whether the turn exists.
func (c *Conversation) AttachPronunciation(id string, p *Pronunciation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.findLocked(id)
	if t == nil {
		return false
	}
	t.Pronunciation = p
	return true
}

// Turn returns a snapshot of the turn with the given ID, or nil.
func (c *Conversation) Turn(id string) *Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.findLocked(id); t != nil {
		return t.clone()
	}
	return nil
}

// Turns returns snapshots of all turns in creation order.
func (c *Conversation) Turns() []*Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Turn, len(c.turns))
	for i, t := range c.turns {
		out[i] = t.clone()
	}
	return out
}

func (c *Conversation) findLocked(id string) *Turn {
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].ID == id {
			return c.turns[i]
		}
	}
	return nil
}
