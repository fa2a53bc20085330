package entity

import (
	"fmt"
	"strings"

	"github.com/zjrosen/kindhub/internal/kind"
)

// KeyScheme prefixes every entity key.
const KeyScheme = "store://"

// Key is the persisted reference to an entity:
//
//	store://<project>/<entity type>/<kind>/<name>:<id>
//
// The id part is optional when referring to the latest version by name.
type Key struct {
	Project string
	Type    EntityType
	Kind    string
	Name    string
	ID      string
}

func (k Key) String() string {
	s := KeyScheme + k.Project + "/" + string(k.Type) + "/" + k.Kind + "/" + k.Name
	if k.ID != "" {
		s += ":" + k.ID
	}
	return s
}

// ParseKey parses a store:// entity key.
func ParseKey(s string) (Key, error) {
	rest, ok := strings.CutPrefix(s, KeyScheme)
	if !ok {
		return Key{}, fmt.Errorf("%w: %q lacks the %s scheme", ErrInvalidKey, s, KeyScheme)
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 4 {
		return Key{}, fmt.Errorf("%w: %q must have project/type/kind/name parts", ErrInvalidKey, s)
	}

	t, err := ParseEntityType(parts[1])
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q: %v", ErrInvalidKey, s, err)
	}
	if !kind.Valid(parts[2]) {
		return Key{}, fmt.Errorf("%w: %q has an invalid kind %q", ErrInvalidKey, s, parts[2])
	}

	name, id, _ := strings.Cut(parts[3], ":")
	if parts[0] == "" || name == "" {
		return Key{}, fmt.Errorf("%w: %q has an empty project or name", ErrInvalidKey, s)
	}

	return Key{Project: parts[0], Type: t, Kind: parts[2], Name: name, ID: id}, nil
}

// ExecutableRef is the reference a task or run carries to its executable:
//
//	<kind>://<project>/<name>:<id>
func ExecutableRef(kindName, project, name, id string) string {
	return kindName + "://" + project + "/" + name + ":" + id
}
