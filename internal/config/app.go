package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"max.ks1230/expenses-bot/internal/entity/currency"
)

type AppConfig struct {
	AllowedUsers     string `mapstructure:"allowed_users"`
	BaseCurrencyName string `mapstructure:"default_currency"`
	TimezoneName     string `mapstructure:"timezone"`
	DataDirectory    string `mapstructure:"data_dir"`
	CatalogFile      string `mapstructure:"categories_file"`

	allowed  []int64
	location *time.Location
}

func (s *AppConfig) prepare() error {
	for _, raw := range splitList(s.AllowedUsers) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "allowed user id %q", raw)
		}
		s.allowed = append(s.allowed, id)
	}

	if !currency.IsSupported(s.BaseCurrencyName) {
		return fmt.Errorf("unknown currency %s", s.BaseCurrencyName)
	}

	loc, err := time.LoadLocation(s.TimezoneName)
	if err != nil {
		return errors.Wrapf(err, "timezone %s", s.TimezoneName)
	}
	s.location = loc
	return nil
}

// AllowedUserIDs is empty when every user is allowed.
func (s *AppConfig) AllowedUserIDs() []int64 {
	return s.allowed
}

func (s *AppConfig) BaseCurrency() string {
	return s.BaseCurrencyName
}

func (s *AppConfig) Location() *time.Location {
	if s.location == nil {
		return time.UTC
	}
	return s.location
}

func (s *AppConfig) DataDir() string {
	return s.DataDirectory
}

func (s *AppConfig) CategoriesFile() string {
	return s.CatalogFile
}
