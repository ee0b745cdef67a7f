// Seeds sample products across every payment model for local testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"lms-enrollment-engine/internal/config"
	"lms-enrollment-engine/internal/domain/model"
	pg "lms-enrollment-engine/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	productRepo := pg.NewProductRepo(pool)

	// If products already exist, do nothing
	existing, err := productRepo.ListAll(ctx, nil)
	if err != nil {
		log.Fatalf("list products: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("%d products already present. No changes.\n", len(existing))
		for _, p := range existing {
			fmt.Printf("  - %s (%s, %d %s)\n", p.Name, p.PaymentModel, p.TotalPrice, p.Currency)
		}
		return
	}

	now := time.Now()
	seed := []*model.Product{
		{
			ID:           uuid.NewString(),
			Name:         "Intro to Programming",
			Currency:     "USD",
			PaymentModel: model.PaymentModelFree,
		},
		{
			ID:                uuid.NewString(),
			Name:              "SQL Fundamentals",
			Currency:          "USD",
			TotalPrice:        49_900,
			PaymentModel:      model.PaymentModelOneTime,
			RequiresSignature: false,
		},
		{
			ID:                uuid.NewString(),
			Name:              "Data Engineering Bootcamp",
			Currency:          "USD",
			TotalPrice:        1_000_000,
			PaymentModel:      model.PaymentModelDepositPlan,
			RequiresSignature: true,
			DepositPercentBP:  2000, // 20%
			InstallmentCount:  4,
			InstallmentEvery:  30 * 24 * time.Hour,
		},
		{
			ID:                   uuid.NewString(),
			Name:                 "Career Coaching Membership",
			Currency:             "USD",
			TotalPrice:           29_900, // per cycle
			PaymentModel:         model.PaymentModelSubscription,
			SubscriptionInterval: 30 * 24 * time.Hour,
			TrialDays:            7,
		},
	}

	for _, p := range seed {
		p.CreatedAt = now
		p.UpdatedAt = now
		if err := p.Validate(); err != nil {
			log.Fatalf("seed product %q invalid: %v", p.Name, err)
		}
		if err := productRepo.Save(ctx, nil, p); err != nil {
			log.Fatalf("save product %q: %v", p.Name, err)
		}
		fmt.Printf("seeded %s (%s)\n", p.Name, p.PaymentModel)
	}
}
