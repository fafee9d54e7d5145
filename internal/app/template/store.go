package template

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/zephis-org/zephis-core/pkg/logger"
)

// ErrNotFound is returned when no template exists for the requested key.
var ErrNotFound = errors.New("template not found")

// Store persists templates keyed by domain and name.
type Store interface {
	Save(tmpl *Template) error
	Get(domain, name string) (*Template, error)
	ListByDomain(domain string) ([]*Template, error)
	Delete(domain, name string) error
}

// TemplateRecord is the persistence row. The template body is stored as a
// JSON payload so schema evolution does not require migrations beyond the
// key columns.
type TemplateRecord struct {
	Id      int    `gorm:"primaryKey;autoIncrement"`
	Domain  string `gorm:"index:idx_template_key,unique"`
	Name    string `gorm:"index:idx_template_key,unique"`
	Version string
	Payload []byte
}

type sqliteStore struct {
	db *gorm.DB
}

// ConnectToStore opens (or creates) the sqlite template database and runs
// migrations.
func ConnectToStore(connectionString string) (Store, error) {
	logger.Default().Infof("Establishing connection to template store: %s", connectionString)

	db, err := gorm.Open(sqlite.Open(connectionString), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot open template store: %w", err)
	}

	if err := db.AutoMigrate(&TemplateRecord{}); err != nil {
		return nil, fmt.Errorf("migrating template store failed: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Save(tmpl *Template) error {
	if err := tmpl.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(tmpl)
	if err != nil {
		return err
	}

	record := TemplateRecord{
		Domain:  tmpl.Domain,
		Name:    tmpl.Name,
		Version: tmpl.Version,
		Payload: payload,
	}

	var existing TemplateRecord
	err = s.db.Where("domain = ? AND name = ?", tmpl.Domain, tmpl.Name).First(&existing).Error
	switch {
	case err == nil:
		record.Id = existing.Id
		return s.db.Save(&record).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.db.Create(&record).Error
	default:
		return err
	}
}

func (s *sqliteStore) Get(domain, name string) (*Template, error) {
	var record TemplateRecord
	err := s.db.Where("domain = ? AND name = ?", domain, name).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, domain, name)
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(&record)
}

func (s *sqliteStore) ListByDomain(domain string) ([]*Template, error) {
	var records []TemplateRecord
	if err := s.db.Where("domain = ?", domain).Find(&records).Error; err != nil {
		return nil, err
	}
	templates := make([]*Template, 0, len(records))
	for i := range records {
		tmpl, err := decodeRecord(&records[i])
		if err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}

func (s *sqliteStore) Delete(domain, name string) error {
	result := s.db.Where("domain = ? AND name = ?", domain, name).Delete(&TemplateRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, domain, name)
	}
	return nil
}

func decodeRecord(record *TemplateRecord) (*Template, error) {
	var tmpl Template
	if err := json.Unmarshal(record.Payload, &tmpl); err != nil {
		return nil, fmt.Errorf("corrupt template payload for %s/%s: %w", record.Domain, record.Name, err)
	}
	// Templates authored without an explicit id inherit the row id. Declared
	// ids are kept as-is since they feed the template hash.
	if tmpl.ID == 0 {
		tmpl.ID = uint64(record.Id)
	}
	return &tmpl, nil
}
