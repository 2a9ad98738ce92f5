package state

import (
	"errors"
	"reflect"
	"testing"
)

func TestStatusModeIdempotent(t *testing.T) {
	dir, _, modes := newFixture(t, "#luna")
	dir.AddMember("#luna", "alice", "a", "h")

	for i := 0; i < 2; i++ {
		res, err := modes.Apply("#luna", "+o", []string{"alice"}, 0)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if !res.StatusTouched {
			t.Error("Expected StatusTouched")
		}
	}

	m, _ := dir.FindMember("#luna", "alice")
	if m.Modes != "o" {
		t.Errorf("Expected modes \"o\", got %q", m.Modes)
	}

	modes.Apply("#luna", "-o", []string{"alice"}, 0)
	m, _ = dir.FindMember("#luna", "alice")
	if m.Modes != "" {
		t.Errorf("Expected no modes after -o, got %q", m.Modes)
	}
}

func TestStatusModesKeepOrder(t *testing.T) {
	dir, _, modes := newFixture(t, "#luna")
	dir.AddMember("#luna", "alice", "a", "h")

	modes.Apply("#luna", "+vo", []string{"alice", "alice"}, 0)
	modes.Apply("#luna", "-v", []string{"alice"}, 0)

	m, _ := dir.FindMember("#luna", "alice")
	if m.Modes != "o" {
		t.Errorf("Expected \"o\", got %q", m.Modes)
	}
}

func TestAddressListClearsWhenEmpty(t *testing.T) {
	dir, _, modes := newFixture(t, "#luna")

	modes.Apply("#luna", "+b", []string{"*!*@host.example"}, 0)
	f, _ := dir.Flag("#luna", 'b')
	if f.Kind != FlagList || !reflect.DeepEqual(f.List, []string{"*!*@host.example"}) {
		t.Fatalf("Unexpected ban list: %+v", f)
	}

	modes.Apply("#luna", "-b", []string{"*!*@HOST.example"}, 0)
	f, _ = dir.Flag("#luna", 'b')
	if f.IsSet() || f.List != nil {
		t.Errorf("Expected ban flag cleared entirely, got %+v", f)
	}
}

func TestAddressListMultiple(t *testing.T) {
	dir, _, modes := newFixture(t, "#luna")

	modes.Apply("#luna", "+bb", []string{"a!*@*", "b!*@*"}, 0)
	modes.Apply("#luna", "-b", []string{"a!*@*"}, 0)

	f, _ := dir.Flag("#luna", 'b')
	if !reflect.DeepEqual(f.List, []string{"b!*@*"}) {
		t.Errorf("Unexpected list: %v", f.List)
	}
}

func TestValueFlags(t *testing.T) {
	dir, _, modes := newFixture(t, "#luna")

	// 324 style: params[0] is our nick, [1] the channel, [2] the flags
	params := []string{"Luna", "#luna", "+ntkl", "secret", "25"}
	if _, err := modes.Apply("#luna", params[2], params, 3); err != nil {
		t.Fatal(err)
	}

	k, _ := dir.Flag("#luna", 'k')
	if k.Kind != FlagSingle || k.Value != "secret" {
		t.Errorf("Unexpected key flag: %+v", k)
	}
	l, _ := dir.Flag("#luna", 'l')
	if l.Kind != FlagSingle || l.Value != "25" {
		t.Errorf("Unexpected limit flag: %+v", l)
	}
	n, _ := dir.Flag("#luna", 'n')
	if n.Kind != FlagBoolean {
		t.Errorf("Expected boolean n, got %+v", n)
	}

	// -l takes no argument, -k does
	modes.Apply("#luna", "-lkt", []string{"secret"}, 0)
	for _, mode := range []byte{'k', 'l', 't'} {
		f, _ := dir.Flag("#luna", mode)
		if f.IsSet() {
			t.Errorf("Expected %c cleared, got %+v", mode, f)
		}
	}
	if n, _ := dir.Flag("#luna", 'n'); !n.IsSet() {
		t.Error("n should still be set")
	}
}

func TestArgumentsConsumedInOrder(t *testing.T) {
	dir, _, modes := newFixture(t, "#luna")
	dir.AddMember("#luna", "alice", "", "")
	dir.AddMember("#luna", "bob", "", "")

	modes.Apply("#luna", "+ob-v+k", []string{"alice", "*!*@x", "bob", "key"}, 0)

	if m, _ := dir.FindMember("#luna", "alice"); m.Modes != "o" {
		t.Errorf("alice: %q", m.Modes)
	}
	if f, _ := dir.Flag("#luna", 'b'); len(f.List) != 1 || f.List[0] != "*!*@x" {
		t.Errorf("ban: %+v", f)
	}
	if f, _ := dir.Flag("#luna", 'k'); f.Value != "key" {
		t.Errorf("key: %+v", f)
	}
}

func TestUnknownFlagIsBoolean(t *testing.T) {
	dir, _, modes := newFixture(t, "#luna")
	dir.AddMember("#luna", "alice", "", "")

	modes.Apply("#luna", "+Zo", []string{"alice"}, 0)

	z, _ := dir.Flag("#luna", 'Z')
	if z.Kind != FlagBoolean {
		t.Errorf("Unknown flag should be boolean, got %+v", z)
	}
	if m, _ := dir.FindMember("#luna", "alice"); m.Modes != "o" {
		t.Errorf("Unknown flag consumed an argument: %q", m.Modes)
	}
}

func TestOutOfRangeFlagSkipped(t *testing.T) {
	dir, _, modes := newFixture(t, "#luna")

	if _, err := modes.Apply("#luna", "+1n", nil, 0); err != nil {
		t.Fatalf("Out of range flag aborted processing: %v", err)
	}
	if n, _ := dir.Flag("#luna", 'n'); !n.IsSet() {
		t.Error("Flag after the rejected one was not applied")
	}
	if _, err := dir.Flag("#luna", '1'); err == nil {
		t.Error("Expected range error for '1'")
	}
}

func TestUnknownMemberReported(t *testing.T) {
	dir, _, modes := newFixture(t, "#luna")
	dir.AddMember("#luna", "bob", "", "")

	res, err := modes.Apply("#luna", "+vv", []string{"ghost", "bob"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.UnknownMembers, []string{"ghost"}) {
		t.Errorf("Expected ghost reported, got %v", res.UnknownMembers)
	}
	if m, _ := dir.FindMember("#luna", "bob"); m.Modes != "v" {
		t.Errorf("Processing stopped after the miss: %q", m.Modes)
	}
}

func TestMissingArgumentSkipped(t *testing.T) {
	dir, _, modes := newFixture(t, "#luna")
	if _, err := modes.Apply("#luna", "+kn", nil, 0); err != nil {
		t.Fatal(err)
	}
	if k, _ := dir.Flag("#luna", 'k'); k.IsSet() {
		t.Error("k without argument must not be set")
	}
	if n, _ := dir.Flag("#luna", 'n'); !n.IsSet() {
		t.Error("n should be set")
	}
}

func TestApplyUnknownChannel(t *testing.T) {
	_, _, modes := newFixture(t)
	if _, err := modes.Apply("#nowhere", "+n", nil, 0); !errors.Is(err, ErrNoSuchChannel) {
		t.Errorf("Expected ErrNoSuchChannel, got %v", err)
	}
}

func TestStatusModeCap(t *testing.T) {
	modes := ""
	for c := byte('a'); c <= 'z'; c++ {
		modes = addStatus(modes, c)
	}
	if len(modes) != MaxStatusModes {
		t.Errorf("Expected %d modes, got %d", MaxStatusModes, len(modes))
	}
}

func TestStatusPrefixes(t *testing.T) {
	dir, caps, modes := newFixture(t, "#luna")
	caps.Apply([]string{"PREFIX=(qaohv)~&@%+"})
	dir.AddMember("#luna", "alice", "", "")

	symbols, nick := modes.SplitPrefixes("@+alice")
	if symbols != "@+" || nick != "alice" {
		t.Fatalf("SplitPrefixes: %q %q", symbols, nick)
	}
	if err := modes.ApplyStatusPrefixes("#luna", nick, "H"+symbols); err != nil {
		t.Fatal(err)
	}
	if m, _ := dir.FindMember("#luna", "alice"); m.Modes != "ov" {
		t.Errorf("Expected \"ov\", got %q", m.Modes)
	}
}
