package state

import (
	"reflect"
	"testing"
)

func TestDefaults(t *testing.T) {
	caps := NewCapabilities(quietLogger())

	tests := map[byte]Category{
		'b': CategoryAddressList,
		'k': CategoryAlwaysValue,
		'l': CategoryValueWhenSet,
		'n': CategoryNoValue,
		'o': CategoryStatus,
		'v': CategoryStatus,
		'Z': CategoryUnknown,
	}
	for mode, want := range tests {
		if got := caps.Classify(mode); got != want {
			t.Errorf("Classify(%c) = %v, want %v", mode, got, want)
		}
	}
	if !caps.IsChannel("#luna") || !caps.IsChannel("&local") || caps.IsChannel("alice") {
		t.Error("Unexpected default CHANTYPES handling")
	}
}

func TestApplyISupport(t *testing.T) {
	caps := NewCapabilities(quietLogger())
	caps.Apply([]string{
		"CHANMODES=beI,kfL,lj,psmntirRcOAQKVCuzNSMTGZ",
		"PREFIX=(qaohv)~&@%+",
		"CHANTYPES=#",
		"CASEMAPPING=ascii",
		"NETWORK=Example",
	})

	if caps.AddressList != "beI" || caps.AlwaysValue != "kfL" || caps.ValueWhenSet != "lj" {
		t.Errorf("Unexpected categories: %+v", caps)
	}
	want := []Prefix{{'~', 'q'}, {'&', 'a'}, {'@', 'o'}, {'%', 'h'}, {'+', 'v'}}
	if !reflect.DeepEqual(caps.Prefixes, want) {
		t.Errorf("Unexpected prefixes: %+v", caps.Prefixes)
	}
	if caps.Classify('I') != CategoryAddressList || caps.Classify('h') != CategoryStatus {
		t.Error("Classification does not follow the announcement")
	}
	if caps.IsChannel("&local") {
		t.Error("CHANTYPES not applied")
	}
	if caps.Casemap()("[A]") != "[a]" {
		t.Error("CASEMAPPING not applied")
	}
	if mode, ok := caps.ModeForSymbol('%'); !ok || mode != 'h' {
		t.Errorf("ModeForSymbol('%%') = %c, %v", mode, ok)
	}
}

func TestCategoriesDisjoint(t *testing.T) {
	caps := NewCapabilities(quietLogger())
	caps.Apply([]string{"CHANMODES=b,bk,kl,lno"})

	if caps.AddressList != "b" || caps.AlwaysValue != "k" || caps.ValueWhenSet != "l" || caps.NoValue != "n" {
		t.Errorf("Duplicate claims not dropped: %+v", caps)
	}
}

func TestMalformedPrefixKeepsPrevious(t *testing.T) {
	caps := NewCapabilities(quietLogger())
	caps.Apply([]string{"PREFIX=(ov)@"})
	if len(caps.Prefixes) != 2 {
		t.Errorf("Malformed PREFIX replaced the table: %+v", caps.Prefixes)
	}
}

func TestReset(t *testing.T) {
	caps := NewCapabilities(quietLogger())
	caps.Apply([]string{"CHANMODES=,,,", "PREFIX=(y)!", "CASEMAPPING=ascii"})
	caps.Reset()

	if caps.Classify('b') != CategoryAddressList || caps.Classify('o') != CategoryStatus {
		t.Error("Reset did not restore defaults")
	}
	if caps.CasemapName != DefaultCasemap {
		t.Errorf("Unexpected casemap %q", caps.CasemapName)
	}
}
