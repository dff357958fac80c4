package types

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestRangeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every recognized range parses back to itself", prop.ForAll(
		func(i int) bool {
			r := Ranges[i]
			got, err := ParseRange(string(r))
			return err == nil && got == r
		},
		gen.IntRange(0, len(Ranges)-1),
	))

	properties.Property("only the one month range is daily", prop.ForAll(
		func(i int) bool {
			r := Ranges[i]
			return (r.Interval() == IntervalDaily) == (r == Range1M)
		},
		gen.IntRange(0, len(Ranges)-1),
	))

	properties.TestingRun(t)
}
