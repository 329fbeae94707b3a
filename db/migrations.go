package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Migration is a single schema change applied ahead of AutoMigrate.
type Migration struct {
	ID   int
	Name string
	Up   func(*gorm.DB) error
}

// allMigrations lists every migration in application order. IDs are unique
// and never reused.
var allMigrations = []Migration{
	{
		ID:   1,
		Name: "0001_rename_hostname_to_domain",
		Up:   migration0001RenameHostnameToDomain,
	},
}

// AllModels returns every model the schema is derived from.
func AllModels() []any {
	return []any{
		&MigrationModel{},
		&SiteModel{},
		&DeploymentModel{},
		&PortAssignmentModel{},
	}
}

// AutoMigrateAll brings the schema fully up to date: manual migrations
// first, so renames land before AutoMigrate would re-add old columns, then
// AutoMigrate for everything else.
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(&MigrationModel{}); err != nil {
		return err
	}

	if err := RunMigrations(db, len(allMigrations)); err != nil {
		return err
	}

	return db.AutoMigrate(AllModels()...)
}

// RunMigrations applies pending migrations up to and including targetID.
// Zero or negative means all of them. Applied migrations are skipped, so
// the call is idempotent.
func RunMigrations(db *gorm.DB, targetID int) error {
	if targetID <= 0 {
		targetID = len(allMigrations)
	}

	applied, err := appliedMigrations(db)
	if err != nil {
		return err
	}

	for _, m := range allMigrations {
		if m.ID > targetID {
			break
		}
		if applied[m.Name] {
			continue
		}

		if err := m.Up(db); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Name, err)
		}
		if err := recordMigration(db, m.Name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.Name, err)
		}
	}

	return nil
}

// appliedMigrations returns the set of migration names already recorded.
func appliedMigrations(db *gorm.DB) (map[string]bool, error) {
	var names []string
	if err := db.Model(&MigrationModel{}).Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}

	applied := make(map[string]bool, len(names))
	for _, name := range names {
		applied[name] = true
	}
	return applied, nil
}

func recordMigration(db *gorm.DB, name string) error {
	return db.Create(&MigrationModel{Name: name, AppliedAt: time.Now()}).Error
}

// CreateSchemaAtMigration rebuilds the schema as it stood at a given
// migration version. Tests use it to exercise upgrades from old databases:
// 0 is the initial schema, N is the state after migrations 1..N.
func CreateSchemaAtMigration(db *gorm.DB, migrationID int) error {
	if err := db.AutoMigrate(&MigrationModel{}); err != nil {
		return err
	}

	if err := createInitialSchema(db); err != nil {
		return err
	}

	if migrationID > 0 {
		return RunMigrations(db, migrationID)
	}
	return nil
}

// createInitialSchema creates the pre-migration schema. Early versions
// imported rows straight from port-map.json, whose keys were called
// hostnames, and the column name followed.
func createInitialSchema(db *gorm.DB) error {
	return db.Exec(`
		CREATE TABLE IF NOT EXISTS port_assignments (
			hostname TEXT PRIMARY KEY,
			port INTEGER NOT NULL UNIQUE,
			created_at DATETIME
		)
	`).Error
}

func migration0001RenameHostnameToDomain(db *gorm.DB) error {
	// Fresh databases never have the old column.
	if !db.Migrator().HasColumn(&PortAssignmentModel{}, "hostname") {
		return nil
	}

	// Plain column rename, needs SQLite 3.25+.
	return db.Exec("ALTER TABLE port_assignments RENAME COLUMN hostname TO domain").Error
}
