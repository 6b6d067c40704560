package pricing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crewstay/crewstay/internal/billing"
)

// Catalog is the on-disk price catalog layout.
type Catalog struct {
	Airlines []struct {
		ID        string            `yaml:"id"`
		Contracts []AirlineContract `yaml:"contracts"`
	} `yaml:"airlines"`
	Hotels []struct {
		ID             string `yaml:"id"`
		HotelPriceList `yaml:",inline"`
	} `yaml:"hotels"`
}

// FileSource serves price books from a YAML catalog.
type FileSource struct {
	airlines map[string][]AirlineContract
	hotels   map[string]HotelPriceList
}

// LoadFile reads and parses the catalog at path.
func LoadFile(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pricing: read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (*FileSource, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("pricing: parse catalog: %w", err)
	}
	src := &FileSource{
		airlines: make(map[string][]AirlineContract, len(catalog.Airlines)),
		hotels:   make(map[string]HotelPriceList, len(catalog.Hotels)),
	}
	for _, airline := range catalog.Airlines {
		id := strings.TrimSpace(airline.ID)
		if id == "" {
			return nil, fmt.Errorf("pricing: airline without id")
		}
		src.airlines[id] = append(src.airlines[id], airline.Contracts...)
	}
	for _, hotel := range catalog.Hotels {
		id := strings.TrimSpace(hotel.ID)
		if id == "" {
			return nil, fmt.Errorf("pricing: hotel without id")
		}
		src.hotels[id] = hotel.HotelPriceList
	}
	return src, nil
}

// Book implements Source.
func (s *FileSource) Book(_ context.Context, kind billing.ReportKind, ownerID string) (Book, error) {
	if s == nil {
		return Book{}, ErrBookNotFound
	}
	switch kind {
	case billing.KindAirline:
		contracts, ok := s.airlines[ownerID]
		if !ok {
			return Book{}, ErrBookNotFound
		}
		return Book{Kind: kind, OwnerID: ownerID, Contracts: contracts}, nil
	case billing.KindHotel:
		prices, ok := s.hotels[ownerID]
		if !ok {
			return Book{}, ErrBookNotFound
		}
		return Book{Kind: kind, OwnerID: ownerID, Hotel: prices}, nil
	default:
		return Book{}, fmt.Errorf("pricing: unsupported report kind %q", kind)
	}
}
