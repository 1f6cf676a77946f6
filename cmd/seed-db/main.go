// Command seed-db provisions a working development database: the default
// rate list over all weight brackets, a demo customer with a funded wallet,
// API keys, and a couple of promocodes.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shipstack/courier-api/internal/domain/auth"
	"github.com/shipstack/courier-api/internal/domain/rate"
	"github.com/shipstack/courier-api/internal/handler"
	"github.com/shipstack/courier-api/internal/storage/postgres"
)

// defaultRatePrices is the seeded default rate card, in rupees per bracket.
var defaultRatePrices = map[string]string{
	"0.5": "40", "1": "55", "2": "80", "3": "105", "5": "150",
	"7": "195", "10": "255", "12": "295", "15": "355", "17": "395",
	"20": "455", "22": "495", "25": "555", "28": "615", "30": "655",
	"35": "755", "40": "855", "45": "955", "50": "1055",
}

func main() {
	var (
		databaseURL  string
		userKey      string
		adminKey     string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&userKey, "user-key", "", "customer API key to seed (or COURIER_SEED_USER_KEY env)")
	flag.StringVar(&adminKey, "admin-key", "", "admin API key to seed (or COURIER_SEED_ADMIN_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or COURIER_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if userKey == "" {
		userKey = os.Getenv("COURIER_SEED_USER_KEY")
	}
	if adminKey == "" {
		adminKey = os.Getenv("COURIER_SEED_ADMIN_KEY")
	}
	if userKey == "" || adminKey == "" {
		slog.Error("API keys are required: set --user-key/--admin-key or COURIER_SEED_USER_KEY/COURIER_SEED_ADMIN_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("COURIER_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, userKey, adminKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, userKey, adminKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCustomer(ctx, pool); err != nil {
		return errors.Wrap(err, "seed customer")
	}
	if err := seedDefaultRates(ctx, pool); err != nil {
		return errors.Wrap(err, "seed default rates")
	}
	if err := seedPromocodes(ctx, pool); err != nil {
		return errors.Wrap(err, "seed promocodes")
	}
	if err := seedAPIKeys(ctx, pool, userKey, adminKey, pepper); err != nil {
		return errors.Wrap(err, "seed api keys")
	}

	return nil
}

// seedCustomer creates the demo customer with a funded wallet.
func seedCustomer(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo customer")

	if _, err := pool.Exec(ctx,
		`INSERT INTO customers (id, name, email) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		"demo", "Demo Shipper", "demo@example.com",
	); err != nil {
		return errors.Wrap(err, "upsert customer")
	}

	if _, err := pool.Exec(ctx,
		`INSERT INTO wallets (id, customer_id, balance) VALUES ($1, $2, $3)
		 ON CONFLICT (customer_id) DO NOTHING`,
		uuid.New().String(), "demo", decimal.RequireFromString("1000"),
	); err != nil {
		return errors.Wrap(err, "upsert wallet")
	}

	slog.Info("seeded customer", slog.String("id", "demo"))
	return nil
}

// seedDefaultRates fills the global default rate list with a price for every
// bracket.
func seedDefaultRates(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding default rate list", slog.Int("brackets", len(rate.Brackets)))

	var listID string
	err := pool.QueryRow(ctx,
		`SELECT id FROM rate_lists WHERE customer_id IS NULL`,
	).Scan(&listID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		listID = uuid.New().String()
		if _, err := pool.Exec(ctx,
			`INSERT INTO rate_lists (id, customer_id) VALUES ($1, NULL)`, listID,
		); err != nil {
			return errors.Wrap(err, "create default rate list")
		}
	case err != nil:
		return errors.Wrap(err, "find default rate list")
	}

	for _, bracket := range rate.Brackets {
		raw, ok := defaultRatePrices[bracket.String()]
		if !ok {
			return errors.Errorf("no seed price for bracket %s", bracket)
		}
		price := decimal.RequireFromString(raw)
		if _, err := pool.Exec(ctx,
			`INSERT INTO rate_prices (rate_list_id, bracket_kg, price) VALUES ($1, $2, $3)
			 ON CONFLICT (rate_list_id, bracket_kg) DO UPDATE SET price = EXCLUDED.price`,
			listID, bracket, price,
		); err != nil {
			return errors.Wrapf(err, "upsert price for bracket %s", bracket)
		}
	}

	return nil
}

func seedPromocodes(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding promocodes")

	promos := []struct {
		code      string
		discount  string
		singleUse bool
	}{
		{code: "WELCOME50", discount: "50", singleUse: true},
		{code: "SHIP10", discount: "10", singleUse: false},
	}

	for _, p := range promos {
		if _, err := pool.Exec(ctx,
			`INSERT INTO promocodes (id, code, discount, active, single_use, uses)
			 VALUES ($1, $2, $3, TRUE, $4, 0)
			 ON CONFLICT (code) DO UPDATE SET discount = EXCLUDED.discount`,
			uuid.New().String(), p.code, decimal.RequireFromString(p.discount), p.singleUse,
		); err != nil {
			return errors.Wrapf(err, "upsert promocode %s", p.code)
		}

		slog.Info("upserted promocode", slog.String("code", p.code))
	}

	return nil
}

func seedAPIKeys(ctx context.Context, pool *pgxpool.Pool, userKey, adminKey, pepper string) error {
	slog.Info("seeding API keys")

	repo := postgres.NewAPIKeyRepository(pool)

	keys := []struct {
		id     string
		key    string
		name   string
		scopes []string
	}{
		{id: "seed-user", key: userKey, name: "Seeded customer key", scopes: []string{}},
		{id: "seed-admin", key: adminKey, name: "Seeded admin key", scopes: []string{auth.ScopeAdmin}},
	}

	for _, k := range keys {
		if err := repo.Insert(ctx, &auth.APIKeyInfo{
			ID:      k.id,
			KeyHash: handler.HashKey([]byte(pepper), k.key),
			Name:    k.name,
			Scopes:  k.scopes,
		}); err != nil {
			return errors.Wrapf(err, "insert key %s", k.id)
		}

		slog.Info("upserted API key", slog.String("id", k.id), slog.String("name", k.name))
	}

	return nil
}
