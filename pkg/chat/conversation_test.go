package chat

import (
	"testing"

	"github.com/linguacafe/linguacafe/pkg/audio/pcm"
)

func TestAppendAssemblesFragmentsInOrder(t *testing.T) {
	conv := NewConversation()

	conv.Append(RoleAgent, "Bon")
	conv.Append(RoleAgent, "jour, ")
	last := conv.Append(RoleAgent, "Marie!")

	turns := conv.Turns()
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}
	if turns[0].Text != "Bonjour, Marie!" {
		t.Fatalf("got text %q, want %q", turns[0].Text, "Bonjour, Marie!")
	}
	if !turns[0].Streaming {
		t.Fatalf("open turn not marked streaming")
	}
	if last.ID != turns[0].ID {
		t.Fatalf("Append returned a different turn than stored")
	}
}

func TestAppendKeepsOneOpenTurnPerRole(t *testing.T) {
	conv := NewConversation()

	agent := conv.Append(RoleAgent, "Hello")
	user := conv.Append(RoleUser, "Hi")
	conv.Append(RoleAgent, " there")

	if agent.ID == user.ID {
		t.Fatalf("agent and user fragments landed on the same turn")
	}
	turns := conv.Turns()
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Text != "Hello there" {
		t.Fatalf("agent turn text = %q", turns[0].Text)
	}
}

func TestFinalizeOpenStartsFreshTurns(t *testing.T) {
	conv := NewConversation()

	conv.Append(RoleAgent, "first")
	conv.Append(RoleUser, "one")
	done := conv.FinalizeOpen()
	if len(done) != 2 {
		t.Fatalf("finalized %d turns, want 2", len(done))
	}
	for _, d := range done {
		if d.Streaming {
			t.Fatalf("finalized turn %s still streaming", d.ID)
		}
	}

	next := conv.Append(RoleAgent, "second")
	if next.ID == done[0].ID || next.ID == done[1].ID {
		t.Fatalf("fragment after finalize reused a closed turn")
	}
	if got := len(conv.Turns()); got != 3 {
		t.Fatalf("got %d turns, want 3", got)
	}
}

func TestAttachByIDAfterNewerTurns(t *testing.T) {
	conv := NewConversation()

	first := conv.Append(RoleUser, "je suis alle au marche")
	conv.FinalizeOpen()
	conv.Append(RoleUser, "et toi")
	conv.FinalizeOpen()

	v := &GrammarVerdict{Correct: false, Corrected: "je suis allé au marché"}
	if !conv.AttachGrammar(first.ID, v) {
		t.Fatalf("AttachGrammar did not find turn %s", first.ID)
	}

	got := conv.Turn(first.ID)
	if got.Grammar == nil || got.Grammar.Corrected != v.Corrected {
		t.Fatalf("verdict not attached to the original turn")
	}
	for _, tn := range conv.Turns() {
		if tn.ID != first.ID && tn.Grammar != nil {
			t.Fatalf("verdict leaked onto turn %s", tn.ID)
		}
	}
}

func TestAttachUnknownTurn(t *testing.T) {
	conv := NewConversation()
	if conv.AttachGrammar("nope", &GrammarVerdict{}) {
		t.Fatalf("AttachGrammar reported success for unknown turn")
	}
	if conv.AttachPronunciation("nope", &Pronunciation{}) {
		t.Fatalf("AttachPronunciation reported success for unknown turn")
	}
	if conv.AttachAudio("nope", pcm.L16Mono16K, []byte{1}) {
		t.Fatalf("AttachAudio reported success for unknown turn")
	}
}

func TestAddTextIsComplete(t *testing.T) {
	conv := NewConversation()
	tn := conv.AddText(RoleUser, "Where is the library?")
	if tn.Streaming {
		t.Fatalf("typed turn marked streaming")
	}
	if conv.OpenTurn(RoleUser) != nil {
		t.Fatalf("typed turn left a user turn open")
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	conv := NewConversation()
	snap := conv.Append(RoleAgent, "abc")
	snap.Text = "mutated"
	if got := conv.Turn(snap.ID).Text; got != "abc" {
		t.Fatalf("mutating a snapshot changed stored text to %q", got)
	}
}
