package marketplace

import (
	"encoding/json"
	"fmt"
)

// Price is the upstream price shape, which arrives either as a bare number or
// as a {"Minimum": n, "Maximum": n} range object. It is decoded once here and
// never re-interpreted downstream.
type Price struct {
	Minimum float64
	Maximum float64
	Set     bool
}

func (p *Price) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var scalar float64
	if err := json.Unmarshal(data, &scalar); err == nil {
		p.Minimum = scalar
		p.Maximum = scalar
		p.Set = true
		return nil
	}

	var obj struct {
		Minimum *float64 `json:"Minimum"`
		Maximum *float64 `json:"Maximum"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unsupported price shape: %w", err)
	}
	if obj.Minimum == nil && obj.Maximum == nil {
		return nil
	}
	if obj.Minimum != nil {
		p.Minimum = *obj.Minimum
	}
	if obj.Maximum != nil {
		p.Maximum = *obj.Maximum
	} else {
		p.Maximum = p.Minimum
	}
	if obj.Minimum == nil {
		p.Minimum = p.Maximum
	}
	p.Set = true
	return nil
}

// IsRange reports whether the price spans distinct minimum and maximum values.
func (p Price) IsRange() bool {
	return p.Set && p.Minimum != p.Maximum
}

// Offer is a raw deal record as returned by the marketplace listings feed.
type Offer struct {
	OfferId    string   `json:"OfferId"`
	Title      string   `json:"Title"`
	Url        string   `json:"Url"`
	Subtitle   string   `json:"Subtitle"`
	Photo      string   `json:"Photo"`
	Site       string   `json:"Site"`
	Categories []string `json:"Categories"`
	SalePrice  Price    `json:"SalePrice"`
	ListPrice  Price    `json:"ListPrice"`
	StartDate  string   `json:"StartDate"`
	EndDate    string   `json:"EndDate"`
}

type listingsResponse struct {
	Items []Offer `json:"Items"`
}
