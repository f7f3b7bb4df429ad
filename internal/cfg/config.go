package cfg

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/capatazlib/go-medic/internal/n"
	"github.com/capatazlib/go-medic/internal/r"
)

// EnvPrefix is the prefix of the environment variables that override
// configuration keys, e.g. MEDIC_CHECK_INTERVAL overrides check_interval
const EnvPrefix = "MEDIC_"

// Duration is a time.Duration that reads and writes Go duration strings
type Duration time.Duration

// UnmarshalYAML parses strings like "10s" or "1m30s"
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a Go duration string
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Config is the configuration of a medic process
type Config struct {
	ServiceName      string   `yaml:"service_name"`
	HealthCheckURL   string   `yaml:"health_check_url"`
	ProbeMethod      string   `yaml:"probe_method"`
	AcceptedStatuses []int    `yaml:"accepted_statuses"`
	ProbeTimeout     Duration `yaml:"probe_timeout"`
	CheckInterval    Duration `yaml:"check_interval"`
	FailureThreshold uint32   `yaml:"failure_threshold"`

	RemediationEngine   string   `yaml:"remediation_engine"`
	RemediationTimeout  Duration `yaml:"remediation_timeout"`
	CooldownInterval    Duration `yaml:"cooldown_interval"`
	MaxCooldownInterval Duration `yaml:"max_cooldown_interval"`
	ContainerRuntime    string   `yaml:"container_runtime"`
	ContainerName       string   `yaml:"container_name"`
	OrchestratorClient  string   `yaml:"orchestrator_client"`
	Namespace           string   `yaml:"namespace"`
	KubeContext         string   `yaml:"kube_context"`
	Kubeconfig          string   `yaml:"kubeconfig"`
	DeploymentName      string   `yaml:"deployment_name"`

	AlertRecipient  string   `yaml:"alert_recipient"`
	AlertKinds      []string `yaml:"alert_kinds"`
	SMTPAddr        string   `yaml:"smtp_addr"`
	SMTPFrom        string   `yaml:"smtp_from"`
	SMTPUsername    string   `yaml:"smtp_username"`
	SMTPPassword    string   `yaml:"smtp_password"`
	WebhookURL      string   `yaml:"webhook_url"`
	NotifyQueueSize uint     `yaml:"notify_queue_size"`
	NotifyTimeout   Duration `yaml:"notify_timeout"`

	LogLevel   string `yaml:"log_level"`
	LogFile    string `yaml:"log_file"`
	ListenAddr string `yaml:"listen_addr"`
}

const (
	// RuntimeDocker restarts containers with the docker CLI
	RuntimeDocker = "docker"
	// RuntimePodman restarts containers with the podman CLI
	RuntimePodman = "podman"
)

const (
	// OrchestratorKubectl remediates through the kubectl binary
	OrchestratorKubectl = "kubectl"
	// OrchestratorAPI remediates by patching the deployment through the
	// kubernetes API
	OrchestratorAPI = "api"
)

// Default returns the configuration used for every key that is not set
func Default() Config {
	return Config{
		ProbeMethod:        "GET",
		AcceptedStatuses:   []int{200},
		ProbeTimeout:       Duration(5 * time.Second),
		CheckInterval:      Duration(10 * time.Second),
		FailureThreshold:   3,
		RemediationEngine:  r.ContainerRestart.String(),
		RemediationTimeout: Duration(r.DefaultTimeout),
		CooldownInterval:   Duration(60 * time.Second),
		ContainerRuntime:   RuntimeDocker,
		OrchestratorClient: OrchestratorKubectl,
		NotifyQueueSize:    64,
		NotifyTimeout:      Duration(10 * time.Second),
		LogLevel:           "info",
	}
}

// LookupFn returns the value of the given environment variable
type LookupFn func(key string) (string, bool)

// Load reads the configuration from the given YAML file on top of the
// defaults, and applies the MEDIC_* variables found on the process
// environment and on the given dotenv files. Process variables win over dotenv
// ones. An empty path skips the YAML file; missing dotenv files are ignored.
func Load(path string, envFiles ...string) (Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config, &ConfigError{source: path, err: err}
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, &ConfigError{source: path, err: err}
		}
	}

	dotenv := map[string]string{}
	for _, envFile := range envFiles {
		vars, err := godotenv.Read(envFile)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return config, &ConfigError{source: envFile, err: err}
		}
		for k, v := range vars {
			dotenv[k] = v
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := config.ApplyEnv(lookup); err != nil {
		return config, err
	}
	return config, nil
}

// Keys returns the configuration keys in declaration order
func Keys() []string {
	tpe := reflect.TypeOf(Config{})
	keys := make([]string, 0, tpe.NumField())
	for i := 0; i < tpe.NumField(); i++ {
		if key := tpe.Field(i).Tag.Get("yaml"); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// EnvName returns the environment variable that overrides the given key
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

// ApplyEnv overrides every key that has a MEDIC_* variable. List keys take
// comma separated values.
func (c *Config) ApplyEnv(lookup LookupFn) error {
	tpe := reflect.TypeOf(*c)
	doc := &yaml.Node{Kind: yaml.MappingNode}

	for i := 0; i < tpe.NumField(); i++ {
		field := tpe.Field(i)
		key := field.Tag.Get("yaml")
		value, ok := lookup(EnvName(key))
		if !ok {
			continue
		}

		var valueNode *yaml.Node
		if field.Type.Kind() == reflect.Slice {
			valueNode = &yaml.Node{Kind: yaml.SequenceNode}
			for _, item := range strings.Split(value, ",") {
				if item = strings.TrimSpace(item); item != "" {
					valueNode.Content = append(valueNode.Content, scalarNode(item))
				}
			}
		} else {
			valueNode = scalarNode(value)
		}
		doc.Content = append(doc.Content, scalarNode(key), valueNode)
	}

	if len(doc.Content) == 0 {
		return nil
	}
	if err := doc.Decode(c); err != nil {
		return &ConfigError{source: "environment", err: err}
	}
	return nil
}

// scalarNode builds an untagged scalar, so its type is resolved from the field
// it gets decoded into
func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: value}
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var err error

	if c.ServiceName == "" {
		err = multierr.Append(err, errors.New("service_name is required"))
	}
	if c.HealthCheckURL == "" {
		err = multierr.Append(err, errors.New("health_check_url is required"))
	} else if u, perr := url.Parse(c.HealthCheckURL); perr != nil || u.Scheme == "" || u.Host == "" {
		err = multierr.Append(err, fmt.Errorf("health_check_url %q is not an absolute URL", c.HealthCheckURL))
	}
	for _, status := range c.AcceptedStatuses {
		if status < 100 || status > 599 {
			err = multierr.Append(err, fmt.Errorf("accepted_statuses: %d is not an HTTP status", status))
		}
	}
	if c.ProbeTimeout <= 0 {
		err = multierr.Append(err, errors.New("probe_timeout must be positive"))
	}
	if c.CheckInterval <= 0 {
		err = multierr.Append(err, errors.New("check_interval must be positive"))
	}
	if c.FailureThreshold == 0 {
		err = multierr.Append(err, errors.New("failure_threshold must be at least 1"))
	}
	if c.RemediationTimeout <= 0 {
		err = multierr.Append(err, errors.New("remediation_timeout must be positive"))
	}
	if c.CooldownInterval < 0 {
		err = multierr.Append(err, errors.New("cooldown_interval must not be negative"))
	}
	if c.MaxCooldownInterval != 0 && c.MaxCooldownInterval < c.CooldownInterval {
		err = multierr.Append(err, errors.New("max_cooldown_interval must not be lower than cooldown_interval"))
	}

	engine, engineErr := r.ParseEngine(c.RemediationEngine)
	if engineErr != nil {
		err = multierr.Append(err, fmt.Errorf("remediation_engine: %w", engineErr))
	}
	if engine == r.ContainerRestart {
		switch c.ContainerRuntime {
		case RuntimeDocker, RuntimePodman:
		default:
			err = multierr.Append(
				err,
				fmt.Errorf("container_runtime must be %q or %q", RuntimeDocker, RuntimePodman),
			)
		}
	}
	if engine == r.OrchestratorRollout {
		switch c.OrchestratorClient {
		case OrchestratorKubectl, OrchestratorAPI:
		default:
			err = multierr.Append(
				err,
				fmt.Errorf("orchestrator_client must be %q or %q", OrchestratorKubectl, OrchestratorAPI),
			)
		}
	}

	for _, kind := range c.AlertKinds {
		if _, kindErr := n.ParseKind(kind); kindErr != nil {
			err = multierr.Append(err, fmt.Errorf("alert_kinds: %w", kindErr))
		}
	}
	if c.SMTPAddr != "" {
		if c.SMTPFrom == "" {
			err = multierr.Append(err, errors.New("smtp_from is required when smtp_addr is set"))
		}
		if c.AlertRecipient == "" {
			err = multierr.Append(err, errors.New("alert_recipient is required when smtp_addr is set"))
		}
	}
	if c.NotifyQueueSize == 0 {
		err = multierr.Append(err, errors.New("notify_queue_size must be at least 1"))
	}
	if c.NotifyTimeout <= 0 {
		err = multierr.Append(err, errors.New("notify_timeout must be positive"))
	}

	if err != nil {
		return &ConfigError{source: "validation", err: err}
	}
	return nil
}

// YAML renders the configuration with secrets redacted
func (c Config) YAML() ([]byte, error) {
	if c.SMTPPassword != "" {
		c.SMTPPassword = "<redacted>"
	}
	return yaml.Marshal(c)
}

// ConfigError is reported when the configuration cannot be read or is invalid
type ConfigError struct {
	source string
	err    error
}

// GetSource returns where the configuration error was found (a file path,
// "environment" or "validation")
func (err *ConfigError) GetSource() string {
	return err.source
}

func (err *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration (%s): %v", err.source, err.err)
}

// Unwrap returns every individual configuration error
func (err *ConfigError) Unwrap() []error {
	return multierr.Errors(err.err)
}

// KVs returns a metadata map for structured logging
func (err *ConfigError) KVs() map[string]interface{} {
	acc := map[string]interface{}{"config.source": err.source}
	for i, e := range multierr.Errors(err.err) {
		acc[fmt.Sprintf("config.%d.error", i)] = e.Error()
	}
	return acc
}
