package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"github.com/wolfman30/service-marketplace/internal/catalog"
	"github.com/wolfman30/service-marketplace/internal/location"
)

type catalogFile struct {
	Business struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Timezone string `json:"timezone"`
	} `json:"business"`
	Locations []struct {
		ID string `json:"id"`
		location.Address
		IsPrimary bool `json:"is_primary"`
	} `json:"locations"`
	Providers  []catalog.Provider `json:"providers"`
	Services   []catalog.Service  `json:"services"`
	Addons     []catalog.Addon    `json:"addons"`
	Promotions []promotionRow     `json:"promotions"`
}

type promotionRow struct {
	ID               string `json:"id"`
	Code             string `json:"code"`
	SavingsType      string `json:"savings_type"`
	SavingsAmount    string `json:"savings_amount"`
	SavingsMaxAmount string `json:"savings_max_amount"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
}

// Loads a business catalog from a JSON file into Postgres. Rows are upserted so
// the file can be applied repeatedly.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/seed-catalog <catalog-file.json>")
		fmt.Println("Example: go run ./scripts/seed-catalog testdata/sample-catalog.json")
		os.Exit(1)
	}
	_ = godotenv.Load()

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		fmt.Println("Error: DATABASE_URL environment variable not set")
		os.Exit(1)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}
	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		fmt.Printf("Error parsing JSON: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		fmt.Printf("Error connecting: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	if err := pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		return seed(ctx, tx, file)
	}); err != nil {
		fmt.Printf("Error seeding catalog: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seeded %s (%s): %d providers, %d services, %d add-ons, %d promotions\n",
		file.Business.Name, file.Business.ID, len(file.Providers), len(file.Services), len(file.Addons), len(file.Promotions))
}

func seed(ctx context.Context, tx pgx.Tx, file catalogFile) error {
	biz := file.Business.ID
	if biz == "" {
		return fmt.Errorf("business id required")
	}
	tz := file.Business.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO businesses (id, name, timezone) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, timezone = EXCLUDED.timezone`,
		biz, file.Business.Name, tz); err != nil {
		return fmt.Errorf("business: %w", err)
	}

	for _, l := range file.Locations {
		if !l.Address.Complete() {
			return fmt.Errorf("location %s: %w", l.ID, location.ErrIncompleteAddress)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO business_locations (id, business_id, address_line1, address_line2, city, state, postal_code, country, is_primary)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''), $9)
			ON CONFLICT (id) DO UPDATE SET address_line1 = EXCLUDED.address_line1, address_line2 = EXCLUDED.address_line2,
				city = EXCLUDED.city, state = EXCLUDED.state, postal_code = EXCLUDED.postal_code,
				country = EXCLUDED.country, is_primary = EXCLUDED.is_primary`,
			l.ID, biz, l.AddressLine1, l.AddressLine2, l.City, l.State, l.PostalCode, l.Country, l.IsPrimary); err != nil {
			return fmt.Errorf("location %s: %w", l.ID, err)
		}
	}

	for _, p := range file.Providers {
		if _, err := tx.Exec(ctx, `
			INSERT INTO providers (id, business_id, display_name, delivery_modes) VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name, delivery_modes = EXCLUDED.delivery_modes`,
			p.ID, biz, p.DisplayName, p.Modes); err != nil {
			return fmt.Errorf("provider %s: %w", p.ID, err)
		}
	}

	for _, s := range file.Services {
		if _, err := tx.Exec(ctx, `
			INSERT INTO services (id, business_id, provider_id, name, description, price_cents, duration_minutes)
			VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7)
			ON CONFLICT (id) DO UPDATE SET provider_id = EXCLUDED.provider_id, name = EXCLUDED.name,
				description = EXCLUDED.description, price_cents = EXCLUDED.price_cents,
				duration_minutes = EXCLUDED.duration_minutes`,
			s.ID, biz, s.ProviderID, s.Name, s.Description, s.PriceCents, s.DurationMinutes); err != nil {
			return fmt.Errorf("service %s: %w", s.ID, err)
		}
	}

	for _, a := range file.Addons {
		eligible := a.EligibleServiceIDs
		if eligible == nil {
			eligible = []string{}
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO addons (id, business_id, name, price_cents, duration_minutes, eligible_service_ids)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price_cents = EXCLUDED.price_cents,
				duration_minutes = EXCLUDED.duration_minutes, eligible_service_ids = EXCLUDED.eligible_service_ids`,
			a.ID, biz, a.Name, a.PriceCents, a.DurationMinutes, eligible); err != nil {
			return fmt.Errorf("addon %s: %w", a.ID, err)
		}
	}

	for _, p := range file.Promotions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO promotions (id, promo_code, savings_type, savings_amount, savings_max_amount, start_date, end_date, scope_business_id)
			VALUES ($1, NULLIF($2, ''), $3, $4::numeric, NULLIF($5, '')::numeric, $6::date, NULLIF($7, '')::date, $8)
			ON CONFLICT (id) DO UPDATE SET promo_code = EXCLUDED.promo_code, savings_type = EXCLUDED.savings_type,
				savings_amount = EXCLUDED.savings_amount, savings_max_amount = EXCLUDED.savings_max_amount,
				start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date`,
			p.ID, p.Code, p.SavingsType, p.SavingsAmount, p.SavingsMaxAmount, p.StartDate, p.EndDate, biz); err != nil {
			return fmt.Errorf("promotion %s: %w", p.ID, err)
		}
	}
	return nil
}
