package fault

import (
	"testing"

	"pgregory.net/rapid"
)

// genProfile draws a valid profile with arbitrary flags and probabilities.
func genProfile(t *rapid.T) Profile {
	return Profile{
		NetworkReliable:    rapid.Bool().Draw(t, "reliable"),
		MessageDuplication: rapid.Bool().Draw(t, "duplication"),
		Probabilities: Probabilities{
			MessageSent:        rapid.Float64Range(0, 1).Draw(t, "sent"),
			MessageDuplication: rapid.Float64Range(0, 1).Draw(t, "dup"),
			NodeFail:           rapid.Float64Range(0, 1).Draw(t, "fail"),
			NodeRecover:        rapid.Float64Range(0, 1).Draw(t, "recover"),
		},
	}
}

func TestPropertyDuplicationCountRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		profile := genProfile(t)
		seed := rapid.Uint64().Draw(t, "seed")

		inj, err := New(profile, NewSource(seed))
		if err != nil {
			t.Fatalf("valid profile rejected: %v", err)
		}

		for range 500 {
			n := inj.DecideDuplicationCount()
			if n < Lost || n > Duplicated {
				t.Fatalf("count %d out of range", n)
			}
			if profile.NetworkReliable && n == Lost {
				t.Fatalf("reliable network lost a message")
			}
			if !profile.MessageDuplication && n == Duplicated {
				t.Fatalf("duplication disabled but got %d", n)
			}
		}
	})
}

func TestPropertyExtremeProbabilities(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Uint64().Draw(t, "seed")
		p := rapid.SampledFrom([]float64{0, 1}).Draw(t, "p")

		profile := Profile{Probabilities: Probabilities{MessageSent: p, NodeFail: p, NodeRecover: p}}
		inj, err := New(profile, NewSource(seed))
		if err != nil {
			t.Fatalf("valid profile rejected: %v", err)
		}

		want := p == 1
		for range 200 {
			if got := inj.HasNodeFailed(); got != want {
				t.Fatalf("HasNodeFailed with p=%v returned %v", p, got)
			}
			if got := inj.HasNodeRecovered(); got != want {
				t.Fatalf("HasNodeRecovered with p=%v returned %v", p, got)
			}
			if sent := inj.DecideDuplicationCount() != Lost; sent != want {
				t.Fatalf("message sent=%v with p=%v", sent, p)
			}
		}
	})
}

func TestPropertySameSeedSameSequence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		profile := genProfile(t)
		seed := rapid.Uint64().Draw(t, "seed")
		calls := rapid.SliceOfN(rapid.IntRange(0, 2), 1, 200).Draw(t, "calls")

		a, _ := New(profile, NewSource(seed))
		b, _ := New(profile, NewSource(seed))

		seq := make([]call, len(calls))
		for i, c := range calls {
			seq[i] = call(c)
		}
		ra, rb := runCalls(a, seq), runCalls(b, seq)
		for i := range ra {
			if ra[i] != rb[i] {
				t.Fatalf("call %d diverged: %d vs %d", i, ra[i], rb[i])
			}
		}
	})
}
