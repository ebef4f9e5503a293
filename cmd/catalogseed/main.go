// Command catalogseed loads a tenant's service catalog from a YAML file.
//
//	CATALOG_FILE=catalog.yaml SEED_TENANT=shop-a catalogseed
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/service-scheduler/internal/config"
	"github.com/ukydev/service-scheduler/internal/db"
	"github.com/ukydev/service-scheduler/internal/models"
	yaml "go.yaml.in/yaml/v3"
)

// catalogFile is the on-disk layout of a catalog.
type catalogFile struct {
	Services []catalogEntry `yaml:"services"`
}

type catalogEntry struct {
	ID                 string   `yaml:"id"`
	Name               string   `yaml:"name"`
	System             string   `yaml:"system"`
	MileageInterval    int      `yaml:"mileage_interval"`
	MileageIntervalMax *int     `yaml:"mileage_interval_max"`
	MonthsInterval     int      `yaml:"months_interval"`
	Makes              []string `yaml:"makes"`
	VehicleIDs         []string `yaml:"vehicle_ids"`
	Common             bool     `yaml:"common"`
	Priority           int      `yaml:"priority"`
	Active             *bool    `yaml:"active"` // defaults to true
	Notes              string   `yaml:"notes"`
}

// parseCatalog decodes a catalog strictly and maps it to templates owned by tenantID.
func parseCatalog(r io.Reader, tenantID string) ([]models.ServiceDefinitionTemplate, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file catalogFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}

	seen := make(map[string]bool, len(file.Services))
	templates := make([]models.ServiceDefinitionTemplate, 0, len(file.Services))
	for i, e := range file.Services {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, fmt.Errorf("services[%d]: id is required", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("services[%d]: duplicate id %q", i, id)
		}
		seen[id] = true
		if e.MileageInterval < 0 || e.MonthsInterval < 0 {
			return nil, fmt.Errorf("service %s: intervals cannot be negative", id)
		}

		active := true
		if e.Active != nil {
			active = *e.Active
		}
		name := e.Name
		if name == "" {
			name = id
		}
		templates = append(templates, models.ServiceDefinitionTemplate{
			TenantID:           tenantID,
			ServiceID:          id,
			ServiceName:        name,
			System:             e.System,
			MileageInterval:    e.MileageInterval,
			MileageIntervalMax: e.MileageIntervalMax,
			MonthsInterval:     e.MonthsInterval,
			Applicability: models.Applicability{
				Makes:      e.Makes,
				VehicleIDs: e.VehicleIDs,
				IsCommon:   e.Common,
				Priority:   e.Priority,
			},
			Active: active,
			Notes:  e.Notes,
		})
	}
	return templates, nil
}

// seed inserts templates, skipping ids the tenant already has.
func seed(ctx context.Context, catalog db.CatalogCollection, templates []models.ServiceDefinitionTemplate) (inserted, skipped int, err error) {
	for _, t := range templates {
		if err := catalog.InsertTemplate(ctx, t); err != nil {
			if errors.Is(err, db.ErrDuplicateKey) {
				log.WithFields(log.Fields{"tenant_id": t.TenantID, "service_id": t.ServiceID}).Info("Catalog entry exists, skipping")
				skipped++
				continue
			}
			return inserted, skipped, fmt.Errorf("insert %s: %w", t.ServiceID, err)
		}
		inserted++
	}
	return inserted, skipped, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	path := os.Getenv("CATALOG_FILE")
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	tenantID := os.Getenv("SEED_TENANT")
	if path == "" || tenantID == "" {
		log.Fatal("CATALOG_FILE and SEED_TENANT are required")
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	templates, err := parseCatalog(f, tenantID)
	f.Close()
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", path, err)
	}

	client, err := db.ConnectMongo(cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	database := client.Database(cfg.MongoDB)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	inserted, skipped, err := seed(ctx, db.NewStore(database).Catalog, templates)
	if err != nil {
		log.Fatalf("Seeding stopped after %d entries: %v", inserted, err)
	}
	log.WithFields(log.Fields{"tenant_id": tenantID, "inserted": inserted, "skipped": skipped}).Info("Catalog seeded")
}
