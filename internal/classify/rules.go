package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/buildingmap"
)

// Rule inspects one sensor and returns a guess, or nil when it has nothing to say.
type Rule interface {
	Name() string
	Apply(s *Sensor) *Guess
}

// DefaultRules returns the built-in rule set in evaluation order.
func DefaultRules(buildings buildingmap.Map) []Rule {
	return []Rule{
		ItemReferenceRule{Buildings: buildings},
		FloorWordRule{},
		FloorCodeRule{},
		RoomRule{},
		TemperatureRule{},
		CO2Rule{},
	}
}

var (
	itemRefParts = regexp.MustCompile(`([^:]+):([^-]+)-(NAE\d+)/(.*)`)
	floorWord    = regexp.MustCompile(`(?i)(\d|U).?\s+(etg|etage|etasje)`)
	floorCode    = regexp.MustCompile(`1([HU]\d+)`)
	roomNumber   = regexp.MustCompile(`(?i)Rom\s+(\d+)\D?`)
)

// ItemReferenceRule splits "site:building-NAEn/object". The real estate is looked up
// in Buildings when set.
type ItemReferenceRule struct {
	Buildings buildingmap.Map
}

func (ItemReferenceRule) Name() string { return "item-reference" }

func (r ItemReferenceRule) Apply(s *Sensor) *Guess {
	m := itemRefParts.FindStringSubmatch(s.ItemReference)
	if m == nil {
		return nil
	}
	g := &Guess{SD: m[1], Building: m[2], NAE: m[3], Object: m[4], Confidence: 1.0}
	if r.Buildings != nil {
		if re, ok := r.Buildings[g.Building]; ok && re != buildingmap.Unknown {
			g.RealEstate = re
		}
	}
	return g
}

// FloorWordRule finds "3. etg", "U etasje" and similar. U means the first basement.
type FloorWordRule struct{}

func (FloorWordRule) Name() string { return "floor-word" }

func (FloorWordRule) Apply(s *Sensor) *Guess {
	floor := firstFloor(s, func(target string) *int {
		m := floorWord.FindStringSubmatch(target)
		if m == nil {
			return nil
		}
		if strings.EqualFold(m[1], "u") {
			return intPtr(-1)
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return nil
		}
		return intPtr(n)
	})
	if floor == nil {
		return nil
	}
	return &Guess{Floor: floor, Confidence: 0.65}
}

// FloorCodeRule reads codes like "1H05" (fifth floor) and "1U2" (second basement).
type FloorCodeRule struct{}

func (FloorCodeRule) Name() string { return "floor-code" }

func (FloorCodeRule) Apply(s *Sensor) *Guess {
	floor := firstFloor(s, func(target string) *int {
		m := floorCode.FindStringSubmatch(target)
		if m == nil {
			return nil
		}
		n, err := strconv.Atoi(m[1][1:])
		if err != nil {
			return nil
		}
		if m[1][0] == 'U' {
			n = -n
		}
		return intPtr(n)
	})
	if floor == nil {
		return nil
	}
	return &Guess{Floor: floor, Confidence: 0.45}
}

// RoomRule finds "Rom 214" in the description.
type RoomRule struct{}

func (RoomRule) Name() string { return "room" }

func (RoomRule) Apply(s *Sensor) *Guess {
	m := roomNumber.FindStringSubmatch(s.Description)
	if m == nil {
		return nil
	}
	return &Guess{Room: m[1], Confidence: 0.85}
}

// TemperatureRule flags sensors reporting degrees Celsius.
type TemperatureRule struct{}

func (TemperatureRule) Name() string { return "temperature" }

func (TemperatureRule) Apply(s *Sensor) *Guess {
	if s.Units != "unitEnumSet.degC" {
		return nil
	}
	return &Guess{Type: TypeTemperature, Confidence: 0.95}
}

// CO2Rule flags sensors described as CO2, or reporting parts per million.
type CO2Rule struct{}

func (CO2Rule) Name() string { return "co2" }

func (CO2Rule) Apply(s *Sensor) *Guess {
	var confidence float64
	if strings.HasPrefix(strings.ToLower(s.Description), "co2") {
		confidence = 0.7
	}
	if s.Units == "unitEnumSet.partsPerMillion" {
		confidence += 0.2
	}
	if confidence == 0 {
		return nil
	}
	return &Guess{Type: TypeCO2, Confidence: confidence}
}

// firstFloor tries the item reference before the description.
func firstFloor(s *Sensor, parse func(string) *int) *int {
	if f := parse(s.ItemReference); f != nil {
		return f
	}
	return parse(s.Description)
}

func intPtr(n int) *int { return &n }
