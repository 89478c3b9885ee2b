package pitch

import "fmt"

// GuitarString identifies one of the six strings of a guitar in standard
// tuning. String 1 has the highest reference frequency.
type GuitarString int

// None means the frequency fell outside every string band.
const (
	None GuitarString = iota
	First
	Second
	Third
	Fourth
	Fifth
	Sixth
)

// StringCount is the number of identifiable strings.
const StringCount = 6

// Band is an admissible detection range in Hz. Bounds are exclusive.
type Band struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether freq lies strictly inside the band.
func (b Band) Contains(freq float64) bool {
	return freq > b.Min && freq < b.Max
}

// StringSpec is the immutable description of one string.
type StringSpec struct {
	String    GuitarString `json:"string"`
	Reference float64      `json:"reference_hz"`
	Band      Band         `json:"band"`
}

// stringSpecs is ordered from string 1 to string 6; bands are disjoint.
var stringSpecs = [StringCount]StringSpec{
	{String: First, Reference: 329.63, Band: Band{Min: 310, Max: 350}},
	{String: Second, Reference: 246.94, Band: Band{Min: 232, Max: 262}},
	{String: Third, Reference: 196.00, Band: Band{Min: 184, Max: 208}},
	{String: Fourth, Reference: 146.83, Band: Band{Min: 138, Max: 156}},
	{String: Fifth, Reference: 110.00, Band: Band{Min: 103, Max: 117}},
	{String: Sixth, Reference: 82.41, Band: Band{Min: 76, Max: 88}},
}

// Specs returns a copy of the string table, string 1 first.
func Specs() []StringSpec {
	out := make([]StringSpec, StringCount)
	copy(out, stringSpecs[:])
	return out
}

// Spec returns the description of s. ok is false for None or out-of-range values.
func (s GuitarString) Spec() (StringSpec, bool) {
	if !s.Valid() {
		return StringSpec{}, false
	}
	return stringSpecs[s-1], true
}

// Valid reports whether s is one of the six strings.
func (s GuitarString) Valid() bool {
	return s >= First && s <= Sixth
}

// Index returns the zero-based table index of s, or -1 for None.
func (s GuitarString) Index() int {
	if !s.Valid() {
		return -1
	}
	return int(s) - 1
}

// Reference returns the reference frequency of s, or 0 for None.
func (s GuitarString) Reference() float64 {
	spec, ok := s.Spec()
	if !ok {
		return 0
	}
	return spec.Reference
}

func (s GuitarString) String() string {
	if !s.Valid() {
		return "none"
	}
	return fmt.Sprintf("string-%d", int(s))
}

// Classify maps a frequency to the string whose band contains it.
func Classify(freq float64) GuitarString {
	for _, spec := range stringSpecs {
		if spec.Band.Contains(freq) {
			return spec.String
		}
	}
	return None
}
