package pricing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/crewstay/crewstay/internal/billing"
	"github.com/crewstay/crewstay/internal/platform/db"
)

const airlineContractsSQL = `
SELECT name, airports, room_prices, breakfast_price::float8, lunch_price::float8, dinner_price::float8
FROM airline_contracts
WHERE airline_id = $1
ORDER BY priority, name`

const hotelPricesSQL = `
SELECT room_prices, breakfast_price::float8, lunch_price::float8, dinner_price::float8
FROM hotel_prices
WHERE hotel_id = $1`

// PostgresSource reads contracts and hotel price lists from PostgreSQL.
type PostgresSource struct {
	db db.Querier
}

// NewPostgresSource constructs the source.
func NewPostgresSource(q db.Querier) *PostgresSource {
	return &PostgresSource{db: q}
}

// Book implements Source.
func (s *PostgresSource) Book(ctx context.Context, kind billing.ReportKind, ownerID string) (Book, error) {
	switch kind {
	case billing.KindAirline:
		contracts, err := s.contracts(ctx, ownerID)
		if err != nil {
			return Book{}, err
		}
		if len(contracts) == 0 {
			return Book{}, ErrBookNotFound
		}
		return Book{Kind: kind, OwnerID: ownerID, Contracts: contracts}, nil
	case billing.KindHotel:
		prices, err := s.hotel(ctx, ownerID)
		if err != nil {
			return Book{}, err
		}
		return Book{Kind: kind, OwnerID: ownerID, Hotel: prices}, nil
	default:
		return Book{}, fmt.Errorf("pricing: unsupported report kind %q", kind)
	}
}

func (s *PostgresSource) contracts(ctx context.Context, airlineID string) ([]AirlineContract, error) {
	rows, err := s.db.Query(ctx, airlineContractsSQL, airlineID)
	if err != nil {
		return nil, fmt.Errorf("pricing: query contracts: %w", err)
	}
	defer rows.Close()
	var contracts []AirlineContract
	for rows.Next() {
		var (
			contract AirlineContract
			rooms    []byte
			meals    [3]pgtype.Float8
		)
		if err := rows.Scan(&contract.Name, &contract.Airports, &rooms, &meals[0], &meals[1], &meals[2]); err != nil {
			return nil, fmt.Errorf("pricing: scan contract: %w", err)
		}
		if contract.Rooms, err = decodeRooms(rooms); err != nil {
			return nil, err
		}
		contract.Meals = mealList(meals)
		contracts = append(contracts, contract)
	}
	return contracts, rows.Err()
}

func (s *PostgresSource) hotel(ctx context.Context, hotelID string) (HotelPriceList, error) {
	var (
		list  HotelPriceList
		rooms []byte
		meals [3]pgtype.Float8
	)
	err := s.db.QueryRow(ctx, hotelPricesSQL, hotelID).Scan(&rooms, &meals[0], &meals[1], &meals[2])
	if err != nil {
		if db.IsNoRows(err) {
			return HotelPriceList{}, ErrBookNotFound
		}
		return HotelPriceList{}, fmt.Errorf("pricing: query hotel prices: %w", err)
	}
	if list.Rooms, err = decodeRooms(rooms); err != nil {
		return HotelPriceList{}, err
	}
	list.Meals = mealList(meals)
	return list, nil
}

func decodeRooms(raw []byte) (map[billing.Category]float64, error) {
	rooms := make(map[billing.Category]float64)
	if len(raw) == 0 {
		return rooms, nil
	}
	if err := json.Unmarshal(raw, &rooms); err != nil {
		return nil, fmt.Errorf("pricing: decode room prices: %w", err)
	}
	return rooms, nil
}

func mealList(values [3]pgtype.Float8) MealPriceList {
	pick := func(v pgtype.Float8) *float64 {
		if !v.Valid {
			return nil
		}
		f := v.Float64
		return &f
	}
	return MealPriceList{Breakfast: pick(values[0]), Lunch: pick(values[1]), Dinner: pick(values[2])}
}
