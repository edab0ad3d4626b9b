package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/discount"
	"github.com/noah-isme/toko-pricing/internal/money"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/repo"
)

type seedDiscount struct {
	code          *string
	kind          discount.Kind
	value         string
	automatic     bool
	minimum       string
	limit         *int32
	perCustomer   *int32
	startsInDays  *int
	expiresInDays *int
}

func ptr[T any](v T) *T { return &v }

var discounts = []seedDiscount{
	{code: ptr("SUMMER20"), kind: discount.KindPercentage, value: "20", minimum: "50"},
	{code: ptr("WELCOME10"), kind: discount.KindFixedAmount, value: "10", minimum: "0", limit: ptr(int32(1))},
	{code: ptr("LOYAL5"), kind: discount.KindFixedAmount, value: "5", minimum: "20", perCustomer: ptr(int32(1))},
	{code: ptr("WINTER15"), kind: discount.KindPercentage, value: "15", minimum: "0", startsInDays: ptr(30)},
	{code: ptr("SPRING25"), kind: discount.KindPercentage, value: "25", minimum: "0", expiresInDays: ptr(-1)},
	{kind: discount.KindFixedAmount, value: "3", automatic: true, minimum: "25"},
}

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger(os.Getenv("OBS_LOG_FORMAT"), "info")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := repo.Migrate(dbURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	store := repo.NewStore(pool)

	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	if err := seedDiscounts(ctx, pool, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed discounts")
	}
	products, err := seedProducts(ctx, pool, faker, 12)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed products")
	}
	cartID, err := seedCart(ctx, pool, products[:3])
	if err != nil {
		logger.Fatal().Err(err).Msg("seed cart")
	}
	logger.Info().Str("cart_id", cartID.String()).Msg("demo cart created")
	if rate := os.Getenv("PRICING_TAX_RATE"); rate != "" {
		if err := store.PutSetting(ctx, repo.SettingTaxRate, rate); err != nil {
			logger.Fatal().Err(err).Msg("store tax rate")
		}
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		invalidateCache(ctx, redisURL, store, logger)
	}
	logger.Info().Msg("seeding completed")
}

func seedDiscounts(ctx context.Context, db repo.DBTX, logger zerolog.Logger) error {
	now := time.Now().UTC()
	for _, d := range discounts {
		var startsAt, endsAt *time.Time
		if d.startsInDays != nil {
			startsAt = ptr(now.AddDate(0, 0, *d.startsInDays))
		}
		if d.expiresInDays != nil {
			endsAt = ptr(now.AddDate(0, 0, *d.expiresInDays))
		}
		tag, err := db.Exec(ctx, `
			INSERT INTO discounts (code, kind, value, is_automatic, minimum_purchase_amount,
				usage_limit, usage_limit_per_customer, starts_at, ends_at)
			VALUES ($1, $2::discount_kind, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT DO NOTHING`,
			d.code, string(d.kind), money.MustParse(d.value), d.automatic, money.MustParse(d.minimum),
			d.limit, d.perCustomer, startsAt, endsAt)
		if err != nil {
			return err
		}
		name := "automatic"
		if d.code != nil {
			name = *d.code
		}
		logger.Info().Str("discount", name).Int64("inserted", tag.RowsAffected()).Msg("seeded discount")
	}
	return nil
}

func seedProducts(ctx context.Context, db repo.DBTX, faker *gofakeit.Faker, n int) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		price := decimal.NewFromFloat(faker.Price(5, 150)).Round(money.Places)
		var id uuid.UUID
		err := db.QueryRow(ctx,
			`INSERT INTO products (title, price, stock) VALUES ($1, $2, $3) RETURNING id`,
			faker.ProductName(), price, faker.IntRange(0, 40)).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedCart(ctx context.Context, db *pgxpool.Pool, products []uuid.UUID) (uuid.UUID, error) {
	var cartID uuid.UUID
	if err := db.QueryRow(ctx, `INSERT INTO carts (customer_id) VALUES ($1) RETURNING id`, uuid.New()).Scan(&cartID); err != nil {
		return uuid.Nil, err
	}
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(`INSERT INTO cart_items (cart_id, product_id, qty)
			SELECT $1, id, LEAST(stock, 1) FROM products WHERE id = $2 AND stock > 0`, cartID, p)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return uuid.Nil, err
	}
	return cartID, nil
}

func invalidateCache(ctx context.Context, redisURL string, store *repo.Store, logger zerolog.Logger) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("parse redis url")
		return
	}
	client := redis.NewClient(opts)
	defer func() { _ = client.Close() }()
	cache := &discount.CachedFinder{Next: store.Queries, Client: client, Prefix: "toko-pricing"}
	if err := cache.Invalidate(ctx); err != nil {
		logger.Warn().Err(err).Msg("invalidate discount cache")
		return
	}
	logger.Info().Msg("discount cache invalidated")
}
