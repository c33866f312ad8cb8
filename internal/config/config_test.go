package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "leadgrid_db", cfg.Database.Database)
				assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
				assert.Equal(t, "jobs_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "job_nudges", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "leadgrid-api-service", cfg.App.Name)
				assert.Equal(t, StoreModeDirect, cfg.Worker.StoreMode)
				assert.Equal(t, 2*time.Second, cfg.Worker.PollInterval)
			}
		})
	}
}

func TestLoad_SharedSecretFromEnv(t *testing.T) {
	t.Setenv(SharedSecretEnv, "s3cret")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.SharedSecret)
}

func validConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8080},
		Storage: StorageConfig{Backend: BackendPostgres},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "leadgrid_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "jobs_exchange",
			},
			Queue: QueueConfig{
				Name: "job_nudges",
			},
		},
		Worker: WorkerConfig{
			StoreMode:    StoreModeDirect,
			PollInterval: 2 * time.Second,
		},
		SharedSecret: "s3cret",
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "memory backend skips database checks",
			mutate:  func(c *Config) { c.Storage.Backend = BackendMemory; c.Database = DatabaseConfig{} },
			wantErr: false,
		},
		{
			name:    "disabled rabbitmq skips broker checks",
			mutate:  func(c *Config) { c.RabbitMQ = RabbitMQConfig{} },
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "missing shared secret",
			mutate:    func(c *Config) { c.SharedSecret = "" },
			wantErr:   true,
			errString: "WORKER_SHARED_SECRET",
		},
		{
			name:      "unknown storage backend",
			mutate:    func(c *Config) { c.Storage.Backend = "redis" },
			wantErr:   true,
			errString: "invalid storage backend",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "enabled rabbitmq without exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "enabled rabbitmq without queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid direct mode",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "valid remote mode",
			mutate: func(c *Config) {
				c.Worker.StoreMode = StoreModeRemote
				c.Worker.APIBaseURL = "http://localhost:8080"
				c.Database = DatabaseConfig{}
			},
			wantErr: false,
		},
		{
			name:    "valid job type filter",
			mutate:  func(c *Config) { c.Worker.JobTypes = []string{"validate_email", "enrich_lead"} },
			wantErr: false,
		},
		{
			name:      "zero poll interval",
			mutate:    func(c *Config) { c.Worker.PollInterval = 0 },
			wantErr:   true,
			errString: "poll_interval must be greater than 0",
		},
		{
			name:      "unknown store mode",
			mutate:    func(c *Config) { c.Worker.StoreMode = "hybrid" },
			wantErr:   true,
			errString: "invalid worker store_mode",
		},
		{
			name: "remote mode without base url",
			mutate: func(c *Config) {
				c.Worker.StoreMode = StoreModeRemote
				c.Worker.APIBaseURL = ""
			},
			wantErr:   true,
			errString: "api_base_url is required",
		},
		{
			name: "remote mode without shared secret",
			mutate: func(c *Config) {
				c.Worker.StoreMode = StoreModeRemote
				c.Worker.APIBaseURL = "http://localhost:8080"
				c.SharedSecret = ""
			},
			wantErr:   true,
			errString: "WORKER_SHARED_SECRET",
		},
		{
			name:      "direct mode without database",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "unknown job type",
			mutate:    func(c *Config) { c.Worker.JobTypes = []string{"mine_bitcoin"} },
			wantErr:   true,
			errString: "unknown worker job type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Setenv(SharedSecretEnv, "s3cret")

	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}

func TestPortConstants(t *testing.T) {
	t.Run("port constants are correct", func(t *testing.T) {
		assert.Equal(t, 1, MinPort)
		assert.Equal(t, 65535, MaxPort)
	})

	t.Run("valid port range", func(t *testing.T) {
		validPorts := []int{1, 80, 443, 8080, 65535}
		for _, port := range validPorts {
			assert.GreaterOrEqual(t, port, MinPort)
			assert.LessOrEqual(t, port, MaxPort)
		}
	})

	t.Run("invalid port range", func(t *testing.T) {
		invalidPorts := []int{0, -1, 65536, 70000}
		for _, port := range invalidPorts {
			valid := port >= MinPort && port <= MaxPort
			assert.False(t, valid, "port %d should be invalid", port)
		}
	})
}
