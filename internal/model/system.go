package model

import (
	"fmt"
	"strconv"
)

// SystemMeta describes a bike-share system independently of its live data.
type SystemMeta struct {
	Tag       string  `json:"tag" yaml:"tag"`
	Name      string  `json:"name" yaml:"name"`
	City      string  `json:"city,omitempty" yaml:"city"`
	Country   string  `json:"country,omitempty" yaml:"country"`
	Company   string  `json:"company,omitempty" yaml:"company"`
	Latitude  float64 `json:"latitude,omitempty" yaml:"latitude"`
	Longitude float64 `json:"longitude,omitempty" yaml:"longitude"`
	GBFSHref  string  `json:"gbfs_href,omitempty" yaml:"-"` // Feed URL exposed to API consumers
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
