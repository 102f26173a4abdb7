package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// enum is a string flag restricted to a set of allowed values.
type enum struct {
	Allowed []string
	Value   string
}

var _ pflag.Value = (*enum)(nil)

func newEnumFlag(allowed []string, d string) *enum {
	return &enum{
		Allowed: allowed,
		Value:   d,
	}
}

func (a enum) String() string {
	return a.Value
}

func (a *enum) Set(p string) error {
	for _, opt := range a.Allowed {
		if p == opt {
			a.Value = p
			return nil
		}
	}
	return fmt.Errorf("'%s' is not included in: %s", p, strings.Join(a.Allowed, ","))
}

func (a *enum) Type() string {
	return "string"
}
