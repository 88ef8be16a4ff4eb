package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flashgate-io/flashgate/internal/storage"
)

type (
	// SeedFile is the YAML document consumed by the seed command.
	//
	// Example:
	//
	//	products:
	//	  - id: widget-1
	//	    stock: 100
	//	  - id: widget-2
	//	    stock: 50
	SeedFile struct {
		Products []SeedProduct `yaml:"products"`
	}

	// SeedProduct is one durable product row to create.
	SeedProduct struct {
		ID    string `yaml:"id"`
		Stock int64  `yaml:"stock"`
	}
)

// runSeed loads the YAML seed file and inserts the listed products into the
// record of truth. Existing rows are left untouched, so re-running seed
// against a live database is safe. Only durable rows are written here; the
// counter-store stock is initialized through the gateway's init endpoint.
func runSeed(config *Config, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the operator's CLI flag
	if err != nil {
		return fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var seed SeedFile

	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	if len(seed.Products) == 0 {
		return fmt.Errorf("seed file %s contains no products", path)
	}

	for _, product := range seed.Products {
		if product.ID == "" {
			return fmt.Errorf("seed file %s contains a product without an id", path)
		}

		if product.Stock < 0 {
			return fmt.Errorf("seed product %s has negative stock %d", product.ID, product.Stock)
		}
	}

	conn, err := storage.NewConnection(storage.NewConfig(config.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	defer func() {
		_ = conn.Close()
	}()

	store := storage.NewOrderStore(conn)
	ctx := context.Background()

	for _, product := range seed.Products {
		if err := store.SeedProduct(ctx, product.ID, product.Stock); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", product.ID, err)
		}

		log.Printf("Seeded product %s with stock %d (existing rows untouched)", product.ID, product.Stock)
	}

	log.Printf("Seed completed: %d product(s)", len(seed.Products))

	return nil
}
