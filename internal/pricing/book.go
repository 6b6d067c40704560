// Package pricing resolves room and meal prices from airline contracts and hotel
// price lists.
package pricing

import (
	"context"
	"errors"
	"strings"

	"github.com/crewstay/crewstay/internal/billing"
)

// ErrBookNotFound indicates no price data exists for the requested owner.
var ErrBookNotFound = errors.New("pricing: price book not found")

// MealPriceList stores optional per-meal prices.
type MealPriceList struct {
	Breakfast *float64 `yaml:"breakfast" json:"breakfast,omitempty"`
	Lunch     *float64 `yaml:"lunch" json:"lunch,omitempty"`
	Dinner    *float64 `yaml:"dinner" json:"dinner,omitempty"`
}

// Prices converts the list into billing prices, leaving missing entries unresolved.
func (m MealPriceList) Prices() billing.MealPrices {
	return billing.MealPrices{
		Breakfast: optional(m.Breakfast),
		Lunch:     optional(m.Lunch),
		Dinner:    optional(m.Dinner),
	}
}

// AirlineContract prices stays for a set of airports.
type AirlineContract struct {
	Name     string                       `yaml:"name"`
	Airports []string                     `yaml:"airports"`
	Rooms    map[billing.Category]float64 `yaml:"rooms"`
	Meals    MealPriceList                `yaml:"meals"`
}

// Covers reports whether the contract applies to airport (case-insensitive).
func (c AirlineContract) Covers(airport string) bool {
	airport = strings.TrimSpace(airport)
	if airport == "" {
		return false
	}
	for _, code := range c.Airports {
		if strings.EqualFold(strings.TrimSpace(code), airport) {
			return true
		}
	}
	return false
}

// HotelPriceList is the flat price list of a hotel.
type HotelPriceList struct {
	Rooms map[billing.Category]float64 `yaml:"rooms"`
	Meals MealPriceList                `yaml:"meals"`
}

// Book holds every price that applies to one report owner.
type Book struct {
	Kind      billing.ReportKind
	OwnerID   string
	Contracts []AirlineContract
	Hotel     HotelPriceList
}

// RoomRate implements billing.PriceSource.
func (b Book) RoomRate(category billing.Category, airport string) billing.Price {
	var rooms map[billing.Category]float64
	switch b.Kind {
	case billing.KindAirline:
		contract, ok := b.contractFor(airport)
		if !ok {
			return billing.Unresolved()
		}
		rooms = contract.Rooms
	case billing.KindHotel:
		rooms = b.Hotel.Rooms
	}
	if price, ok := rooms[category]; ok {
		return billing.Resolved(price)
	}
	return billing.Unresolved()
}

// MealPrices implements billing.PriceSource.
func (b Book) MealPrices(airport string) billing.MealPrices {
	switch b.Kind {
	case billing.KindAirline:
		if contract, ok := b.contractFor(airport); ok {
			return contract.Meals.Prices()
		}
		return billing.MealPrices{}
	case billing.KindHotel:
		return b.Hotel.Meals.Prices()
	default:
		return billing.MealPrices{}
	}
}

func (b Book) contractFor(airport string) (AirlineContract, bool) {
	for _, contract := range b.Contracts {
		if contract.Covers(airport) {
			return contract, true
		}
	}
	return AirlineContract{}, false
}

// Source loads price books.
type Source interface {
	Book(ctx context.Context, kind billing.ReportKind, ownerID string) (Book, error)
}

// Chain queries sources in order and returns the first book found.
type Chain []Source

// Book implements Source.
func (c Chain) Book(ctx context.Context, kind billing.ReportKind, ownerID string) (Book, error) {
	for _, src := range c {
		if src == nil {
			continue
		}
		book, err := src.Book(ctx, kind, ownerID)
		if err == nil {
			return book, nil
		}
		if !errors.Is(err, ErrBookNotFound) {
			return Book{}, err
		}
	}
	return Book{}, ErrBookNotFound
}

func optional(v *float64) billing.Price {
	if v == nil {
		return billing.Unresolved()
	}
	return billing.Resolved(*v)
}
