package resolution

import (
	"strconv"

	"github.com/framevault/dedupe-engine/internal/serial"
	"github.com/framevault/dedupe-engine/pkg/models"
)

// MetadataConditional is a predicate over a single file's metadata, defined by
// the host ("filetype is jpeg", "filesize > 1MiB"). The engine consumes the
// capability; it does not specify the filter language.
type MetadataConditional interface {
	Test(media *models.MediaResult) bool
	Summary() string
}

// PairComparator is one predicate over an ordered (better, worse) candidate
// pair. Several of these stacked up make for "the better file is a jpeg over
// one megabyte, the worse file is a png under 100KB".
type PairComparator interface {
	Test(better, worse *models.MediaResult) bool
	Summary() string
}

// Side selectors for the one-file comparator.
const (
	LookingAtBetterCandidate = 0
	LookingAtWorseCandidate  = 1
)

// ComparatorOneFile holds one metadata conditional and is told which side of
// the pair to apply it to.
type ComparatorOneFile struct {
	LookingAt   int
	Conditional MetadataConditional
}

func (c *ComparatorOneFile) Test(better, worse *models.MediaResult) bool {
	if c.LookingAt == LookingAtBetterCandidate {
		return c.Conditional.Test(better)
	}
	return c.Conditional.Test(worse)
}

func (c *ComparatorOneFile) Summary() string {
	side := "A"
	if c.LookingAt == LookingAtWorseCandidate {
		side = "B"
	}
	return side + " " + c.Conditional.Summary()
}

// Relative comparator properties.
const (
	PropertyWidth = iota
	PropertyHeight
	PropertyNumPixels
	PropertyFilesize
	PropertyAge
)

// Relative comparator operators.
const (
	// better >= multiplier * worse
	OperatorRatioAtLeast = iota
	// better >= worse + quantity
	OperatorAbsoluteAtLeast
)

var propertyNames = map[int]string{
	PropertyWidth:     "width",
	PropertyHeight:    "height",
	PropertyNumPixels: "pixel count",
	PropertyFilesize:  "filesize",
	PropertyAge:       "age",
}

// ComparatorRelative compares the pair directly: "the better candidate is 4x
// larger than the worse". No clever two-file conditional needed; a property,
// an operator, and a quantity cover it.
type ComparatorRelative struct {
	Property int
	Operator int
	Quantity float64

	// NowMS supplies the clock for age tests; zero means ages compare as 0.
	NowMS int64
}

func (c *ComparatorRelative) property(media *models.MediaResult) float64 {
	switch c.Property {
	case PropertyWidth:
		return float64(media.Resolution.Width)
	case PropertyHeight:
		return float64(media.Resolution.Height)
	case PropertyNumPixels:
		return float64(media.Resolution.Width) * float64(media.Resolution.Height)
	case PropertyFilesize:
		return float64(media.Filesize)
	case PropertyAge:
		return float64(media.Age(c.NowMS))
	default:
		return 0
	}
}

func (c *ComparatorRelative) Test(better, worse *models.MediaResult) bool {
	b := c.property(better)
	w := c.property(worse)

	switch c.Operator {
	case OperatorRatioAtLeast:
		return b >= c.Quantity*w
	case OperatorAbsoluteAtLeast:
		return b >= w+c.Quantity
	default:
		return false
	}
}

func (c *ComparatorRelative) Summary() string {
	name := propertyNames[c.Property]
	if c.Operator == OperatorRatioAtLeast {
		return "A " + name + " is at least " + trimFloat(c.Quantity) + "x B"
	}
	return "A " + name + " is at least " + trimFloat(c.Quantity) + " more than B"
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

// Serialisable comparator payloads. The conditional inside a one-file
// comparator is a host capability; it persists by its host-side summary key
// and is rebound on load through a ConditionalResolver.

type comparatorOneFilePayload struct {
	LookingAt      int    `json:"lookingAt"`
	ConditionalKey string `json:"conditionalKey"`
}

type comparatorRelativePayload struct {
	Property int     `json:"property"`
	Operator int     `json:"operator"`
	Quantity float64 `json:"quantity"`
}

// ConditionalResolver rebinds persisted conditional keys to live host
// conditionals.
type ConditionalResolver func(key string) (MetadataConditional, bool)

func init() {
	serial.Register(serial.TypeComparatorOneFile, 1)
	serial.Register(serial.TypeComparatorRelative, 1)
}
