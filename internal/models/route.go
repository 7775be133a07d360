package models

import (
	"fmt"
	"strings"
)

// Route is one of the two fixed travel directions.
type Route string

const (
	RouteRCCBA Route = "RC-CBA"
	RouteCBARC Route = "CBA-RC"
)

var Routes = []Route{RouteRCCBA, RouteCBARC}

func ParseRoute(raw string) (Route, error) {
	r := Route(strings.ToUpper(strings.TrimSpace(raw)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown route %q", raw)
	}
	return r, nil
}

func (r Route) Valid() bool {
	return r == RouteRCCBA || r == RouteCBARC
}

func (r Route) Label() string {
	switch r {
	case RouteRCCBA:
		return "Río Cuarto → Córdoba"
	case RouteCBARC:
		return "Córdoba → Río Cuarto"
	default:
		return string(r)
	}
}

// SharedBaseKey is the price key of the per-seat fare on this route.
func (r Route) SharedBaseKey() string {
	if r == RouteCBARC {
		return PriceBaseSharedCBARC
	}
	return PriceBaseSharedRCCBA
}

// CityExclusiveKey is the price key of a whole-vehicle trip on this route.
func (r Route) CityExclusiveKey() string {
	if r == RouteCBARC {
		return PriceCityExclusiveCBARC
	}
	return PriceCityExclusiveRCCBA
}
