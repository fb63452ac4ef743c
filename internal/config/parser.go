package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gnb-pucch/internal/logging"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	defaultUEsPerCell  = 64
	defaultDetachEvery = 3
	defaultRounds      = 1
)

func LoadConfig(filepath string) (*DeploymentConfig, error) {
	config, _, err := LoadConfigWithContent(filepath)
	return config, err
}

// LoadConfigWithContent also returns the file as read, before environment
// expansion, so callers can record exactly what was deployed.
func LoadConfigWithContent(filepath string) (*DeploymentConfig, string, error) {
	logger := logging.GetLogger()

	data, err := os.ReadFile(filepath)
	if err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to read config file")
		return nil, "", err
	}

	originalContent := string(data)
	config, err := Parse([]byte(expandEnvVars(originalContent)))
	if err != nil {
		logger.WithField("filepath", filepath).WithError(err).Error("Failed to load config file")
		return nil, "", err
	}
	return config, originalContent, nil
}

// Parse decodes and validates an already expanded YAML document.
func Parse(data []byte) (*DeploymentConfig, error) {
	var config DeploymentConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyDefaults(&config)
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		envVar := strings.Trim(match, "${}")
		if value := os.Getenv(envVar); value != "" {
			return value
		}
		return match
	})
}

func applyDefaults(config *DeploymentConfig) {
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	sim := &config.Simulation
	if sim.UEsPerCell == 0 {
		sim.UEsPerCell = defaultUEsPerCell
	}
	if sim.DetachEvery == nil {
		detach := defaultDetachEvery
		sim.DetachEvery = &detach
	}
	if sim.Rounds == 0 {
		sim.Rounds = defaultRounds
	}
	for i := range config.Cells {
		if config.Cells[i].Name == "" {
			config.Cells[i].Name = fmt.Sprintf("cell-%d", config.Cells[i].Index)
		}
	}
}

func validateConfig(config *DeploymentConfig) error {
	if config.MaxPUCCHGrantsPerSlot <= 0 {
		return fmt.Errorf("max_pucch_grants_per_slot must be greater than 0")
	}

	if _, err := logrus.ParseLevel(config.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	if db := config.InfluxDB; db != nil {
		if db.Host == "" || db.Org == "" || db.Bucket == "" {
			return fmt.Errorf("incomplete influxdb configuration")
		}
	}

	sim := config.Simulation
	if sim.UEsPerCell < 0 || sim.DetachInterval() < 0 || sim.Rounds < 0 {
		return fmt.Errorf("simulation parameters must not be negative")
	}

	if len(config.Cells) == 0 {
		return fmt.Errorf("at least one cell must be defined")
	}

	indices := make(map[int]bool)
	for _, cell := range config.Cells {
		if cell.Index < 0 {
			return fmt.Errorf("cell %s: index must not be negative", cell.Name)
		}
		if indices[cell.Index] {
			return fmt.Errorf("cell %s: index %d is already used", cell.Name, cell.Index)
		}
		indices[cell.Index] = true

		if _, err := cell.Build(); err != nil {
			return fmt.Errorf("cell %s: %w", cell.Name, err)
		}
	}

	return nil
}
