// Package config holds the crawler's configuration sections and their defaults.
package config

import (
	"time"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
)

// Defaults mirror the original deployment.
const (
	DefaultMetasysTimeout    = 30 * time.Second
	DefaultPageSize          = 100
	DefaultPageDelay         = time.Second
	DefaultItemDelay         = 2 * time.Second
	DefaultObjectType        = 165
	DefaultEnumSetPageSize   = 1000
	DefaultEnumSet           = 508
	DefaultTypeCacheSize     = 256
	DefaultDBDriver          = "postgres"
	DefaultMetricsJobName    = "metasys_crawler"
	DefaultScheduleSpec      = "@every 6h"
	DefaultSchedulerListen   = ":8090"
	DefaultHTTPClientTimeout = 30 * time.Second
)

// Config is the root configuration.
type Config struct {
	Metasys   MetasysConfig   `yaml:"metasys"`
	EntraOS   EntraOSConfig   `yaml:"entraos"`
	Database  DatabaseConfig  `yaml:"database"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Publisher PublisherConfig `yaml:"publisher"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   logger.Config   `yaml:"logging"`
}

// MetasysConfig describes the source BAS API.
type MetasysConfig struct {
	BaseURL  string        `env:"METASYS_BASEURL"  yaml:"base_url"`
	Username string        `env:"METASYS_USERNAME" yaml:"username"`
	Password string        `env:"METASYS_PASSWORD" yaml:"password"`
	Timeout  time.Duration `env:"METASYS_TIMEOUT"  yaml:"request_timeout"`
}

// EntraOSConfig describes the SSO service and the BAS metadata sink.
type EntraOSConfig struct {
	SSOURL     string        `env:"ENTRAOS_SSO_URL"     yaml:"sso_url"`
	BASBaseURL string        `env:"ENTRAOS_BAS_BASEURL" yaml:"bas_base_url"`
	AppID      string        `env:"ENTRAOS_BAS_APPID"   yaml:"app_id"`
	AppName    string        `env:"ENTRAOS_BAS_APPNAME" yaml:"app_name"`
	Secret     string        `env:"ENTRAOS_BAS_SECRET"  yaml:"secret"`
	Timeout    time.Duration `env:"ENTRAOS_TIMEOUT"     yaml:"request_timeout"`
}

// DatabaseConfig selects the SQL driver and connection.
type DatabaseConfig struct {
	Driver      string `env:"DB_DRIVER"       yaml:"driver"`
	DSN         string `env:"DSN"             yaml:"dsn"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" yaml:"auto_migrate"`
}

// CrawlerConfig tunes paging and pacing against the source API.
type CrawlerConfig struct {
	PageSize          int           `env:"CRAWLER_PAGE_SIZE"           yaml:"page_size"`
	PageDelay         time.Duration `env:"CRAWLER_PAGE_DELAY"          yaml:"page_delay"`
	ItemDelay         time.Duration `env:"CRAWLER_ITEM_DELAY"          yaml:"item_delay"`
	DefaultObjectType int           `env:"CRAWLER_DEFAULT_OBJECT_TYPE" yaml:"default_object_type"`
	EnumSetPageSize   int           `env:"CRAWLER_ENUMSET_PAGE_SIZE"   yaml:"enumset_page_size"`
	DefaultEnumSet    int64         `env:"CRAWLER_DEFAULT_ENUMSET"     yaml:"default_enumset"`
}

// PublisherConfig tunes the publish step.
type PublisherConfig struct {
	StrictBuildings bool `env:"PUBLISHER_STRICT_BUILDINGS" yaml:"strict_buildings"`
	TypeCacheSize   int  `env:"PUBLISHER_TYPE_CACHE_SIZE"  yaml:"type_cache_size"`
}

// RedisConfig enables sync statistics when URL is set.
type RedisConfig struct {
	URL      string `env:"REDIS_URL"      yaml:"url"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
}

// MetricsConfig enables pushing run metrics when PushgatewayURL is set.
type MetricsConfig struct {
	PushgatewayURL string `env:"PUSHGATEWAY_URL"  yaml:"pushgateway_url"`
	JobName        string `env:"METRICS_JOB_NAME" yaml:"job_name"`
}

// SchedulerConfig configures the long-running schedule command.
type SchedulerConfig struct {
	Spec          string `env:"SCHEDULE_SPEC"           yaml:"spec"`
	ObjectTypes   []int  `env:"SCHEDULE_OBJECT_TYPES"   yaml:"object_types"`
	ListenAddress string `env:"SCHEDULER_LISTEN_ADDRESS" yaml:"listen_address"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Metasys.Timeout == 0 {
		c.Metasys.Timeout = DefaultMetasysTimeout
	}
	if c.EntraOS.Timeout == 0 {
		c.EntraOS.Timeout = DefaultHTTPClientTimeout
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDBDriver
	}
	c.Crawler.setDefaults()
	if c.Publisher.TypeCacheSize <= 0 {
		c.Publisher.TypeCacheSize = DefaultTypeCacheSize
	}
	if c.Metrics.JobName == "" {
		c.Metrics.JobName = DefaultMetricsJobName
	}
	if c.Scheduler.Spec == "" {
		c.Scheduler.Spec = DefaultScheduleSpec
	}
	if len(c.Scheduler.ObjectTypes) == 0 {
		c.Scheduler.ObjectTypes = []int{c.Crawler.DefaultObjectType}
	}
	if c.Scheduler.ListenAddress == "" {
		c.Scheduler.ListenAddress = DefaultSchedulerListen
	}
	c.Logging.SetDefaults()
}

func (c *CrawlerConfig) setDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PageDelay == 0 {
		c.PageDelay = DefaultPageDelay
	}
	if c.ItemDelay == 0 {
		c.ItemDelay = DefaultItemDelay
	}
	if c.DefaultObjectType == 0 {
		c.DefaultObjectType = DefaultObjectType
	}
	if c.EnumSetPageSize <= 0 {
		c.EnumSetPageSize = DefaultEnumSetPageSize
	}
	if c.DefaultEnumSet == 0 {
		c.DefaultEnumSet = DefaultEnumSet
	}
}

// ValidateDatabase checks what every command touching the local store needs.
func (c *Config) ValidateDatabase() error {
	if err := required("database.dsn", "DSN", c.Database.DSN); err != nil {
		return err
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
		return nil
	default:
		return &ValidationError{Field: "database.driver", Env: "DB_DRIVER", Reason: "must be postgres or sqlite"}
	}
}

// ValidateMetasys checks the source API settings.
func (c *Config) ValidateMetasys() error {
	for _, f := range []struct{ field, env, val string }{
		{"metasys.base_url", "METASYS_BASEURL", c.Metasys.BaseURL},
		{"metasys.username", "METASYS_USERNAME", c.Metasys.Username},
		{"metasys.password", "METASYS_PASSWORD", c.Metasys.Password},
	} {
		if err := required(f.field, f.env, f.val); err != nil {
			return err
		}
	}
	return nil
}

// ValidateEntraOS checks the sink and SSO settings.
func (c *Config) ValidateEntraOS() error {
	for _, f := range []struct{ field, env, val string }{
		{"entraos.sso_url", "ENTRAOS_SSO_URL", c.EntraOS.SSOURL},
		{"entraos.bas_base_url", "ENTRAOS_BAS_BASEURL", c.EntraOS.BASBaseURL},
		{"entraos.app_id", "ENTRAOS_BAS_APPID", c.EntraOS.AppID},
		{"entraos.app_name", "ENTRAOS_BAS_APPNAME", c.EntraOS.AppName},
		{"entraos.secret", "ENTRAOS_BAS_SECRET", c.EntraOS.Secret},
	} {
		if err := required(f.field, f.env, f.val); err != nil {
			return err
		}
	}
	return nil
}
