package db

import (
	"errors"
	"fmt"
	"log"

	"conveyor/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var errDBUnavailable = errors.New("database unavailable")

type Store struct {
	DB *gorm.DB
}

func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		log.Printf("POSTGRES_DSN not set; starting in no-db mode.")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := gdb.AutoMigrate(&ProcessedMessageModel{}, &AnnotationRecordModel{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{DB: gdb}, nil
}

func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
