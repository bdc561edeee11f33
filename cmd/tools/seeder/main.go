package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-fees/internal/auth"
	"github.com/noah-isme/toko-fees/internal/common"
	"github.com/noah-isme/toko-fees/internal/config"
	"github.com/noah-isme/toko-fees/internal/db"
	"github.com/noah-isme/toko-fees/internal/obs"
)

var vendorCountries = []string{"US", "US", "CA", "GB", "DE", "ID"}

type vendor struct {
	ID      string
	Name    string
	Country string
}

type variant struct {
	ID    string
	Name  string
	Price int64
	Ships bool
}

type product struct {
	ID            string
	Title         string
	Price         int64
	OwnerID       string
	Ships         bool
	Domestic      int64
	International int64
	Variants      []variant
}

type rule struct {
	ID        string
	Title     string
	Threshold int
	Percent   int
}

type fixtures struct {
	Vendors  []vendor
	Products []product
	Rules    []rule
}

// buildFixtures generates a deterministic catalog for the given seed.
func buildFixtures(f *gofakeit.Faker, vendors, productsPerVendor int) fixtures {
	var out fixtures
	for i := 0; i < vendors; i++ {
		v := vendor{ID: f.UUID(), Name: f.Company(), Country: f.RandomString(vendorCountries)}
		out.Vendors = append(out.Vendors, v)
		for j := 0; j < productsPerVendor; j++ {
			p := product{
				ID:      f.UUID(),
				Title:   f.ProductName(),
				Price:   int64(f.Number(500, 15000)),
				OwnerID: v.ID,
				Ships:   f.Number(1, 4) != 1,
			}
			if p.Ships {
				p.Domestic = int64(f.Number(0, 10)) * 100
				p.International = p.Domestic + int64(f.Number(5, 25))*100
			}
			if f.Bool() {
				for _, size := range []string{"S", "M", "L"} {
					p.Variants = append(p.Variants, variant{
						ID:    f.UUID(),
						Name:  size,
						Price: p.Price + int64(f.Number(0, 5))*100,
						Ships: p.Ships && size != "S",
					})
				}
			}
			out.Products = append(out.Products, p)
		}
	}
	out.Rules = []rule{
		{ID: f.UUID(), Title: "Buy 3, save 10%", Threshold: 3, Percent: 10},
		{ID: f.UUID(), Title: "Buy 5, save 20%", Threshold: 5, Percent: 20},
	}
	return out
}

func insert(ctx context.Context, pool *pgxpool.Pool, fx fixtures) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, v := range fx.Vendors {
			batch.Queue(`INSERT INTO vendors (id, name, country) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
				v.ID, v.Name, v.Country)
		}
		for _, p := range fx.Products {
			batch.Queue(`INSERT INTO products (id, title, price, owner_id) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
				p.ID, p.Title, p.Price, p.OwnerID)
			batch.Queue(`INSERT INTO product_shipping (product_id, enabled, domestic_rate, international_rate)
VALUES ($1, $2, $3, $4) ON CONFLICT (product_id) DO NOTHING`, p.ID, p.Ships, p.Domestic, p.International)
			for _, vr := range p.Variants {
				batch.Queue(`INSERT INTO product_variants (id, product_id, name, price) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
					vr.ID, p.ID, vr.Name, vr.Price)
				batch.Queue(`INSERT INTO product_variant_shipping (variant_id, product_id, enabled) VALUES ($1, $2, $3) ON CONFLICT (variant_id) DO NOTHING`,
					vr.ID, p.ID, vr.Ships)
			}
		}
		for _, r := range fx.Rules {
			batch.Queue(`INSERT INTO volume_discounts (id, title, threshold, percent) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
				r.ID, r.Title, r.Threshold, r.Percent)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

func main() {
	seed := flag.Int64("seed", 42, "faker seed; the same seed yields the same catalog")
	vendors := flag.Int("vendors", 3, "number of vendors")
	perVendor := flag.Int("products", 5, "products per vendor")
	tokens := flag.Bool("tokens", true, "print development admin and vendor tokens")
	flag.Parse()

	logger := obs.NewLogger(os.Getenv("OBS_LOG_FORMAT"), "info").With().Str("component", "seeder").Logger()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if _, err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	fx := buildFixtures(gofakeit.New(*seed), *vendors, *perVendor)
	if err := insert(ctx, pool, fx); err != nil {
		logger.Fatal().Err(err).Msg("seed catalog")
	}
	logger.Info().
		Int("vendors", len(fx.Vendors)).
		Int("products", len(fx.Products)).
		Int("rules", len(fx.Rules)).
		Msg("seeding completed")

	if *tokens {
		printTokens(logger, cfg, fx)
	}
}

func printTokens(logger zerolog.Logger, cfg *config.Config, fx fixtures) {
	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		logger.Error().Err(err).Msg("build verifier")
		return
	}
	admin, err := verifier.Sign(uuid.NewString(), []string{common.RoleAdmin}, 24*time.Hour)
	if err != nil {
		logger.Error().Err(err).Msg("sign admin token")
		return
	}
	fmt.Printf("admin token: %s\n", admin)
	for _, v := range fx.Vendors {
		tok, err := verifier.Sign(v.ID, []string{common.RoleVendor}, 24*time.Hour)
		if err != nil {
			logger.Error().Err(err).Str("vendor_id", v.ID).Msg("sign vendor token")
			continue
		}
		fmt.Printf("vendor %s (%s, %s): %s\n", v.Name, v.ID, v.Country, tok)
	}
}
