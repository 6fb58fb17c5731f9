// Package main implements a standalone seed script that populates the
// checkout engine database with demo stock levels and coupon codes for
// local development.
//
// Run: go run ./scripts/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type stockRow struct {
	ProductID string
	VariantID string
	OnHand    int
}

var stockRows = []stockRow{
	{"prod-espresso-machine", "", 25},
	{"prod-burr-grinder", "", 40},
	{"prod-pour-over-kit", "variant-black", 60},
	{"prod-pour-over-kit", "variant-copper", 15},
	{"prod-kettle-gooseneck", "", 30},
	{"prod-filter-papers", "variant-100pk", 500},
	{"prod-beans-ethiopia", "variant-250g", 120},
	{"prod-beans-ethiopia", "variant-1kg", 45},
	{"prod-beans-colombia", "variant-250g", 90},
	{"prod-demo-scarce", "", 1},
}

type couponRow struct {
	Code          string
	DiscountType  string
	DiscountValue float64
	MinimumAmount float64
	ValidDays     int
}

var couponRows = []couponRow{
	{"WELCOME10", "percent", 10, 500, 365},
	{"FLAT50", "fixed", 50, 1000, 90},
	{"BIGSPENDER", "percent", 15, 5000, 30},
	{"EXPIRED5", "fixed", 5, 0, -1},
}

func main() {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		getEnv("POSTGRES_USER", "checkout"),
		getEnv("POSTGRES_PASSWORD", "checkout_secret"),
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("POSTGRES_DB_NAME", "checkout_db"),
		getEnv("POSTGRES_SSL_MODE", "disable"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	for _, row := range stockRows {
		_, err := pool.Exec(ctx, `
			INSERT INTO stock (product_id, variant_id, on_hand, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (product_id, variant_id)
			DO UPDATE SET on_hand = EXCLUDED.on_hand, updated_at = NOW()`,
			row.ProductID, row.VariantID, row.OnHand,
		)
		if err != nil {
			log.Fatalf("seed stock %s/%s: %v", row.ProductID, row.VariantID, err)
		}
	}
	log.Printf("seeded %d stock rows", len(stockRows))

	now := time.Now().UTC()
	for _, row := range couponRows {
		validFrom := now.AddDate(0, 0, -1)
		validUntil := now.AddDate(0, 0, row.ValidDays)
		_, err := pool.Exec(ctx, `
			INSERT INTO coupons (code, discount_type, discount_value, minimum_amount, valid_from, valid_until, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (code)
			DO UPDATE SET discount_type = EXCLUDED.discount_type,
			              discount_value = EXCLUDED.discount_value,
			              minimum_amount = EXCLUDED.minimum_amount,
			              valid_from = EXCLUDED.valid_from,
			              valid_until = EXCLUDED.valid_until`,
			row.Code, row.DiscountType, row.DiscountValue, row.MinimumAmount, validFrom, validUntil,
		)
		if err != nil {
			log.Fatalf("seed coupon %s: %v", row.Code, err)
		}
	}
	log.Printf("seeded %d coupons", len(couponRows))
}
