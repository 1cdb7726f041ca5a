package db

import (
	"fmt"
	"testing"
)

func TestSetGetDelScenario(t *testing.T) {
	d := New()

	steps := []struct {
		tokens []string
		status Status
		reply  string
	}{
		{[]string{"get", "name"}, StatusKeyNotFound, "key name not found"},
		{[]string{"set", "name", "bob"}, StatusSuccess, "set name to bob"},
		{[]string{"get", "name"}, StatusSuccess, "bob"},
		{[]string{"del", "name"}, StatusSuccess, "key name deleted"},
		{[]string{"get", "name"}, StatusKeyNotFound, "key name not found"},
		{[]string{"del", "name"}, StatusKeyNotFound, "key name not found"},
	}

	for _, step := range steps {
		status, reply := d.Process(step.tokens)
		if status != step.status || reply != step.reply {
			t.Fatalf("%v: got (%d, %q), expected (%d, %q)",
				step.tokens, status, reply, step.status, step.reply)
		}
	}
}

func TestSetOverwrites(t *testing.T) {
	d := New()

	d.Process([]string{"set", "color", "red"})
	d.Process([]string{"set", "color", "blue"})

	if status, reply := d.Process([]string{"get", "color"}); status != StatusSuccess || reply != "blue" {
		t.Errorf("got (%d, %q), expected the overwritten value", status, reply)
	}
	if d.Len() != 1 {
		t.Errorf("overwrite must not add a key, len is %d", d.Len())
	}
}

func TestGetIsIdempotent(t *testing.T) {
	d := New()
	d.Process([]string{"set", "k", "v"})

	for i := 0; i < 3; i++ {
		if status, reply := d.Process([]string{"get", "k"}); status != StatusSuccess || reply != "v" {
			t.Fatalf("get %d: got (%d, %q)", i, status, reply)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	d := New()
	for _, tokens := range [][]string{
		{"flush", "all"},
		{"", "x"},
		{},
	} {
		if status, reply := d.Process(tokens); status != StatusUnknownCommand || reply != "unknown command" {
			t.Errorf("%v: got (%d, %q)", tokens, status, reply)
		}
	}
}

func TestArgumentErrors(t *testing.T) {
	d := New()

	cases := []struct {
		tokens []string
		reply  string
	}{
		{[]string{"set", "onlykey"}, "invalid number of arguments, set requires two arguments"},
		{[]string{"get", "k", "extra"}, "invalid number of arguments, get requires one argument"},
		{[]string{"del", "k", "extra"}, "invalid number of arguments, del requires one argument"},
	}
	for _, c := range cases {
		status, reply := d.Process(c.tokens)
		if status != StatusArgumentError {
			t.Errorf("%v: status %d", c.tokens, status)
		}
		if reply != c.reply {
			t.Errorf("%v: reply %q, expected %q", c.tokens, reply, c.reply)
		}
	}
}

func TestManyKeysSurviveGrowth(t *testing.T) {
	d := New()
	const total = 1000

	for i := 0; i < total; i++ {
		key := fmt.Sprintf("k%d", i)
		if status, _ := d.Process([]string{"set", key, fmt.Sprintf("v%d", i)}); status != StatusSuccess {
			t.Fatalf("set %s failed with status %d", key, status)
		}
	}
	if d.Len() != total {
		t.Fatalf("expected %d keys, got %d", total, d.Len())
	}

	for i := 0; i < total; i++ {
		key := fmt.Sprintf("k%d", i)
		status, reply := d.Process([]string{"get", key})
		if status != StatusSuccess || reply != fmt.Sprintf("v%d", i) {
			t.Fatalf("get %s: got (%d, %q)", key, status, reply)
		}
	}
}
