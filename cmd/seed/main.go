package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicbridge/clinic-bot/internal/db"
)

var specialties = []string{
	"Cardiology",
	"Dermatology",
	"ENT",
	"Endocrinology",
	"General Practice",
	"Neurology",
	"Ophthalmology",
	"Orthopedics",
	"Pediatrics",
	"Psychiatry",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedSpecialties(context.Background(), pool); err != nil {
		log.Fatalf("seed specialties: %v", err)
	}
	if err := seedDoctors(context.Background(), pool, 5); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedProfiles(context.Background(), pool, 200); err != nil {
		log.Fatalf("seed profiles: %v", err)
	}

	log.Println("seed complete")
}

func seedSpecialties(ctx context.Context, pool *pgxpool.Pool) error {
	log.Printf("seeding %d specialties", len(specialties))

	for _, name := range specialties {
		_, err := pool.Exec(ctx, `
			INSERT INTO specialties (name)
			VALUES ($1)
			ON CONFLICT (name) DO NOTHING
		`, name)
		if err != nil {
			return err
		}
	}

	log.Println("specialties seeded")
	return nil
}

// seedDoctors inserts perSpecialty doctors into every specialty with spread
// experience so the descending ordering is visible in the bot.
func seedDoctors(ctx context.Context, pool *pgxpool.Pool, perSpecialty int) error {
	log.Printf("seeding %d doctors", perSpecialty*len(specialties))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, spec := range specialties {
		for i := 0; i < perSpecialty; i++ {
			name := gofakeit.Name()
			exp := gofakeit.Number(1, 35)

			_, err := tx.Exec(ctx, `
				INSERT INTO doctors (name, specialty, experience)
				VALUES ($1, $2, $3)
			`, name, spec, exp)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("doctors seeded")
	return nil
}

func seedProfiles(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d profiles", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		phone := gofakeit.Numerify("##########")
		name := gofakeit.Name()
		age := gofakeit.Number(18, 90)

		_, err := tx.Exec(ctx, `
			INSERT INTO profiles (phone, name, age)
			VALUES ($1, $2, $3)
			ON CONFLICT (phone) DO UPDATE
			SET name = EXCLUDED.name, age = EXCLUDED.age
		`, phone, name, age)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("profiles seeded")
	return nil
}
