package parser

import (
	"fmt"
	"log/slog"
	"strings"
)

// Resolution decides which referenced tables an unqualified column is
// attributed to when a query reads from more than one table.
type Resolution string

const (
	// ResolveFirst attributes lineage to the first referenced table and
	// records the column as discovered on every referenced table.
	ResolveFirst Resolution = "first"
	// ResolveAll attributes lineage and discovery to every referenced table.
	ResolveAll Resolution = "all"
	// ResolveUnique attributes the column only when exactly one table is referenced.
	ResolveUnique Resolution = "unique"
)

// DefaultAdHocName is the table name given to bare WITH/SELECT statements.
const DefaultAdHocName = "Query Result"

// Resolutions lists the accepted policies.
func Resolutions() []Resolution {
	return []Resolution{ResolveFirst, ResolveAll, ResolveUnique}
}

// String implements fmt.Stringer.
func (r Resolution) String() string {
	if r == "" {
		return string(ResolveFirst)
	}
	return string(r)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Resolution) UnmarshalText(text []byte) error {
	v := Resolution(strings.ToLower(strings.TrimSpace(string(text))))
	if v == "" {
		*r = ResolveFirst
		return nil
	}
	for _, known := range Resolutions() {
		if v == known {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("unknown resolution policy %q (want first, all or unique)", string(text))
}

// MarshalText implements encoding.TextMarshaler.
func (r Resolution) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Options configures Parse. The zero value is usable.
type Options struct {
	// Resolution is the policy for unqualified columns. Empty means ResolveFirst.
	Resolution Resolution
	// AdHocName names the result of bare queries. Empty means DefaultAdHocName.
	AdHocName string
	// Logger receives debug output and recovered statement failures.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Resolution == "" {
		o.Resolution = ResolveFirst
	}
	if o.AdHocName == "" {
		o.AdHocName = DefaultAdHocName
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}
