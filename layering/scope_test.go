package layering

import (
	"reflect"
	"testing"
)

func TestNewChainOrdersStrongestFirst(t *testing.T) {
	cases := []struct {
		name   string
		input  []Scope
		expect []Scope
	}{
		{
			name:   "mixed",
			input:  []Scope{Network(), User("7"), Site(), Blog("3")},
			expect: []Scope{User("7"), Blog("3"), Site(), Network()},
		},
		{
			name:   "dedupe and drop unknown",
			input:  []Scope{Site(), {Level: LevelUnknown}, Site(), Blog("1"), Blog("2")},
			expect: []Scope{Blog("1"), Blog("2"), Site()},
		},
		{
			name:   "empty",
			expect: []Scope{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chain := NewChain(tc.input...)
			got := chain.Ordered()
			if !reflect.DeepEqual(tc.expect, got) {
				t.Fatalf("unexpected order\nwant: %#v\n got: %#v", tc.expect, got)
			}
			if len(tc.expect) == 0 {
				if chain.Strongest() != (Scope{}) {
					t.Fatalf("expected zero strongest scope")
				}
				return
			}
			if chain.Strongest() != tc.expect[0] || chain.Len() != len(tc.expect) {
				t.Fatalf("unexpected strongest %#v", chain.Strongest())
			}
		})
	}
}

func TestScopeIdentifier(t *testing.T) {
	cases := map[string]Scope{
		"site/my_plugin":    Site(),
		"network/my_plugin": Network(),
		"blog/3/my_plugin":  Blog("3"),
		"user/42/my_plugin": User("42"),
		"unknown/my_plugin": {},
	}
	for want, scope := range cases {
		if got := scope.Identifier("my_plugin"); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestParseLevelAndValidate(t *testing.T) {
	if ParseLevel("BLOG") != LevelBlog || ParseLevel("") != LevelSite || ParseLevel("tenant") != LevelUnknown {
		t.Fatalf("unexpected parse results")
	}
	if err := Blog("").Validate(); err == nil {
		t.Fatalf("expected blog scope without id to fail")
	}
	if err := User(" ").Validate(); err == nil {
		t.Fatalf("expected user scope without id to fail")
	}
	if err := (Scope{}).Validate(); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
	if err := Network().Validate(); err != nil {
		t.Fatalf("network: %v", err)
	}
	if LevelUser.String() != "user" {
		t.Fatalf("unexpected level name %q", LevelUser.String())
	}
}
