package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/omreki/domasy/internal/notifications"
	"github.com/omreki/domasy/pkg/storage"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig              `json:"server"`
	Database DatabaseConfig            `json:"database"`
	Storage  StorageConfig             `json:"storage"`
	Email    notifications.EmailConfig `json:"email"`
	Security SecurityConfig            `json:"security"`
	Workflow WorkflowConfig            `json:"workflow"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	User           string `json:"user"`
	Password       string `json:"password"`
	DBName         string `json:"db_name"`
	SSLMode        string `json:"ssl_mode"`
	MaxConnections int    `json:"max_connections"`
	MaxIdleConns   int    `json:"max_idle_conns"`
}

// StorageConfig wraps the object store settings plus the bucket name.
type StorageConfig struct {
	storage.Config
	Bucket string `json:"bucket"`
}

// SecurityConfig holds token signing settings.
type SecurityConfig struct {
	JWTSecret string        `json:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl"`
}

// WorkflowConfig holds approval-flow settings.
type WorkflowConfig struct {
	// FallbackApproverEmail receives the default review stage when a
	// document is uploaded without reviewers.
	FallbackApproverEmail string `json:"fallback_approver_email"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "domasy",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
		},
		Storage: StorageConfig{
			Config: storage.Config{Region: "us-east-1"},
			Bucket: "domasy-documents",
		},
		Security: SecurityConfig{
			TokenTTL: 24 * time.Hour,
		},
	}

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)
	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DATABASE_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			config.Database.Port = p
		}
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if bucket := os.Getenv("STORAGE_BUCKET"); bucket != "" {
		config.Storage.Bucket = bucket
	}
	if region := os.Getenv("STORAGE_REGION"); region != "" {
		config.Storage.Region = region
	}
	if endpoint := os.Getenv("STORAGE_ENDPOINT"); endpoint != "" {
		config.Storage.Endpoint = endpoint
		config.Storage.UsePathStyle = true
	}
	if key := os.Getenv("STORAGE_ACCESS_KEY_ID"); key != "" {
		config.Storage.AccessKeyID = key
	}
	if secret := os.Getenv("STORAGE_SECRET_ACCESS_KEY"); secret != "" {
		config.Storage.SecretAccessKey = secret
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		config.Email.SMTPHost = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Email.SMTPPort = p
		}
	}
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		config.Email.Username = user
	}
	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		config.Email.Password = pass
	}
	if from := os.Getenv("SMTP_FROM_ADDRESS"); from != "" {
		config.Email.FromAddress = from
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if email := os.Getenv("WORKFLOW_FALLBACK_APPROVER"); email != "" {
		config.Workflow.FallbackApproverEmail = email
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
