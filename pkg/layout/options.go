package layout

import (
	"fmt"
	"strings"
)

// Direction is the axis data flows along.
type Direction string

// Direction constants.
const (
	LeftToRight Direction = "LR"
	TopToBottom Direction = "TB"
)

// UnmarshalText accepts LR or TB in any case. Empty means LR.
func (d *Direction) UnmarshalText(text []byte) error {
	switch v := Direction(strings.ToUpper(strings.TrimSpace(string(text)))); v {
	case "":
		*d = LeftToRight
	case LeftToRight, TopToBottom:
		*d = v
	default:
		return fmt.Errorf("unknown layout direction %q (want LR or TB)", string(text))
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	if d == "" {
		return []byte(LeftToRight), nil
	}
	return []byte(d), nil
}

// Options controls node sizing and spacing.
type Options struct {
	Direction    Direction `koanf:"direction"`
	NodeSep      float64   `koanf:"node_sep"`      // gap between nodes in one rank
	RankSep      float64   `koanf:"rank_sep"`      // gap between ranks
	NodeWidth    float64   `koanf:"node_width"`
	HeaderHeight float64   `koanf:"header_height"` // node height without columns
	RowHeight    float64   `koanf:"row_height"`    // added per column
	Sweeps       int       `koanf:"sweeps"`        // crossing-reduction passes
}

// DefaultOptions returns the standard spacing.
func DefaultOptions() Options {
	return Options{
		Direction:    LeftToRight,
		NodeSep:      100,
		RankSep:      250,
		NodeWidth:    240,
		HeaderHeight: 60,
		RowHeight:    32,
		Sweeps:       12,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Direction == "" {
		o.Direction = def.Direction
	}
	if o.NodeSep <= 0 {
		o.NodeSep = def.NodeSep
	}
	if o.RankSep <= 0 {
		o.RankSep = def.RankSep
	}
	if o.NodeWidth <= 0 {
		o.NodeWidth = def.NodeWidth
	}
	if o.HeaderHeight <= 0 {
		o.HeaderHeight = def.HeaderHeight
	}
	if o.RowHeight <= 0 {
		o.RowHeight = def.RowHeight
	}
	if o.Sweeps <= 0 {
		o.Sweeps = def.Sweeps
	}
	return o
}

// NodeSize returns the box of a node showing the given number of columns.
func (o Options) NodeSize(columns int) (width, height float64) {
	o = o.withDefaults()
	return o.NodeWidth, o.HeaderHeight + o.RowHeight*float64(columns)
}
