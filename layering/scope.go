package layering

import (
	"fmt"
	"slices"
	"strings"
)

// Level orders where an option group is stored. Higher levels override lower
// ones when layers are merged.
type Level int

const (
	// LevelUnknown flags a scope built without level metadata.
	LevelUnknown Level = iota
	// LevelNetwork is shared by every blog of a multisite network.
	LevelNetwork
	// LevelSite is the single-site option table.
	LevelSite
	// LevelBlog is one blog of a network.
	LevelBlog
	// LevelUser is per-user meta and the strongest layer.
	LevelUser
)

func (l Level) String() string {
	switch l {
	case LevelNetwork:
		return "network"
	case LevelSite:
		return "site"
	case LevelBlog:
		return "blog"
	case LevelUser:
		return "user"
	default:
		return "unknown"
	}
}

// ParseLevel converts a manifest or CLI value. Unrecognised values map to
// LevelUnknown.
func ParseLevel(value string) Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "network":
		return LevelNetwork
	case "site", "":
		return LevelSite
	case "blog":
		return LevelBlog
	case "user":
		return LevelUser
	default:
		return LevelUnknown
	}
}

// Scope addresses one storage location for an option group.
type Scope struct {
	Level  Level
	BlogID string // set when Level == LevelBlog
	UserID string // set when Level == LevelUser
}

// Site returns the single-site scope.
func Site() Scope { return Scope{Level: LevelSite} }

// Network returns the network-wide scope.
func Network() Scope { return Scope{Level: LevelNetwork} }

// Blog returns the scope of one blog.
func Blog(id string) Scope { return Scope{Level: LevelBlog, BlogID: id} }

// User returns the scope of one user.
func User(id string) Scope { return Scope{Level: LevelUser, UserID: id} }

// Validate reports scopes missing the id their level requires.
func (s Scope) Validate() error {
	switch s.Level {
	case LevelNetwork, LevelSite:
		return nil
	case LevelBlog:
		if strings.TrimSpace(s.BlogID) == "" {
			return fmt.Errorf("layering: blog scope requires a blog id")
		}
		return nil
	case LevelUser:
		if strings.TrimSpace(s.UserID) == "" {
			return fmt.Errorf("layering: user scope requires a user id")
		}
		return nil
	default:
		return fmt.Errorf("layering: unknown scope level")
	}
}

// Identifier returns the deterministic storage key for option within the
// scope, e.g. "blog/3/my_plugin".
func (s Scope) Identifier(option string) string {
	switch s.Level {
	case LevelUser:
		return fmt.Sprintf("user/%s/%s", s.UserID, option)
	case LevelBlog:
		return fmt.Sprintf("blog/%s/%s", s.BlogID, option)
	case LevelNetwork:
		return "network/" + option
	case LevelSite:
		return "site/" + option
	default:
		return "unknown/" + option
	}
}

// Chain is an ordered layering sequence from strongest to weakest.
type Chain struct {
	ordered []Scope
}

// NewChain drops unknown and duplicate scopes and sorts the rest strongest
// first, keeping input order among peers.
func NewChain(scopes ...Scope) Chain {
	filtered := make([]Scope, 0, len(scopes))
	seen := map[Scope]bool{}
	for _, scope := range scopes {
		if scope.Level == LevelUnknown || seen[scope] {
			continue
		}
		seen[scope] = true
		filtered = append(filtered, scope)
	}
	slices.SortStableFunc(filtered, func(a, b Scope) int {
		return int(b.Level) - int(a.Level)
	})
	return Chain{ordered: filtered}
}

// Ordered returns a copy of the chain, strongest at index 0.
func (c Chain) Ordered() []Scope {
	return slices.Clone(c.ordered)
}

// Len reports how many scopes the chain holds.
func (c Chain) Len() int {
	return len(c.ordered)
}

// Strongest returns the first scope, or the zero scope for an empty chain.
func (c Chain) Strongest() Scope {
	if len(c.ordered) == 0 {
		return Scope{}
	}
	return c.ordered[0]
}
