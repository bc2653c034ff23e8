package temporalx

import (
	"time"

	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/pkg/logger"
	"github.com/kiryuchi10/AIX-MCP-3D-Modeling-Automation/internal/platform/envutil"
)

const (
	DefaultNamespace = "default"
	DefaultTaskQueue = "modeling-jobs"
)

type Config struct {
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`

	ClientCertPath string `yaml:"client_cert_path"`
	ClientKeyPath  string `yaml:"client_key_path"`
	ClientCAPath   string `yaml:"client_ca_path"`

	AutoRegisterNamespace bool          `yaml:"auto_register_namespace"`
	RetentionDays         int           `yaml:"retention_days"`
	DialTimeout           time.Duration `yaml:"dial_timeout"`
	DialMaxWait           time.Duration `yaml:"dial_max_wait"`
	Backoff               time.Duration `yaml:"backoff"`
	BackoffMax            time.Duration `yaml:"backoff_max"`
}

// LoadConfig reads TEMPORAL_* variables over base (usually the YAML config section).
func LoadConfig(base Config, log *logger.Logger) Config {
	base = base.withDefaults()
	return Config{
		Address:   envutil.String("TEMPORAL_ADDRESS", base.Address, log),
		Namespace: envutil.String("TEMPORAL_NAMESPACE", base.Namespace, log),
		TaskQueue: envutil.String("TEMPORAL_TASK_QUEUE", base.TaskQueue, log),

		ClientCertPath: envutil.String("TEMPORAL_CLIENT_CERT_PATH", base.ClientCertPath, log),
		ClientKeyPath:  envutil.String("TEMPORAL_CLIENT_KEY_PATH", base.ClientKeyPath, log),
		ClientCAPath:   envutil.String("TEMPORAL_CLIENT_CA_PATH", base.ClientCAPath, log),

		AutoRegisterNamespace: envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", base.AutoRegisterNamespace, log),
		RetentionDays:         envutil.Int("TEMPORAL_NAMESPACE_RETENTION_DAYS", base.RetentionDays, log),
		DialTimeout:           envutil.Duration("TEMPORAL_DIAL_TIMEOUT", base.DialTimeout, log),
		DialMaxWait:           envutil.Duration("TEMPORAL_DIAL_MAX_WAIT", base.DialMaxWait, log),
		Backoff:               base.Backoff,
		BackoffMax:            base.BackoffMax,
	}.withDefaults()
}

func (c Config) Enabled() bool { return c.Address != "" }

func (c Config) withDefaults() Config {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.TaskQueue == "" {
		c.TaskQueue = DefaultTaskQueue
	}
	if c.RetentionDays < 1 {
		c.RetentionDays = 7
	}
	if c.RetentionDays > 365 {
		c.RetentionDays = 365
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.DialMaxWait <= 0 {
		c.DialMaxWait = 60 * time.Second
	}
	if c.Backoff <= 0 {
		c.Backoff = 250 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 5 * time.Second
	}
	return c
}

func (c Config) mTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}
