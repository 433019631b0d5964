package configuration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

const (
	BackendKernel = "kernel"
	BackendFake   = "fake"
)

type (
	// Config is the on-disk daemon configuration. Every field is optional;
	// Default() fills the gaps.
	Config struct {
		Platform PlatformConfig `toml:"platform"`
		Status   StatusConfig   `toml:"status"`
	}

	PlatformConfig struct {
		Backend           string   `toml:"backend" validate:"oneof=kernel fake"`
		ReceiveBufferSize int      `toml:"receive_buffer_size" validate:"gte=0"`
		UdevGroup         uint32   `toml:"udev_group" validate:"oneof=0 1 2"`
		UdevDataDir       string   `toml:"udev_data_dir"`
		SysctlPrefixes    []string `toml:"sysctl_prefixes" validate:"dive,sysctl_prefix"`
	}

	StatusConfig struct {
		Enabled     bool   `toml:"enabled"`
		Address     string `toml:"address" validate:"omitempty,ip"`
		Port        uint16 `toml:"port" validate:"required_if=Enabled true"`
		RequestRate int    `toml:"request_rate" validate:"gte=1"`
	}
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("sysctl_prefix", validateSysctlPrefix); err != nil {
		panic(err)
	}
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Platform: PlatformConfig{
			Backend:           BackendKernel,
			ReceiveBufferSize: DefaultReceiveBufferSize,
			UdevGroup:         DefaultUdevGroup,
			UdevDataDir:       DefaultUdevDataDir,
			SysctlPrefixes:    append([]string(nil), SysctlPrefixes...),
		},
		Status: StatusConfig{
			Enabled:     true,
			Address:     DefaultStatusAddress,
			Port:        DefaultStatusPort,
			RequestRate: RequestRate,
		},
	}
}

// Load reads the TOML file at path on top of Default(). A missing file is not
// an error when path is the default location.
func Load(path string) (*Config, error) {
	cfg := Default()

	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultConfigPath {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := Decode(content, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode unmarshals content into cfg and validates the result
func Decode(content []byte, cfg *Config) error {
	if err := toml.Unmarshal(content, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("failed to parse config file at line %d, column %d: %s", row, col, derr.Error())
		}
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed on '%s'", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

func validateSysctlPrefix(fl validator.FieldLevel) bool {
	prefix := fl.Field().String()
	if !strings.HasPrefix(prefix, "/") || !strings.HasSuffix(prefix, "/") {
		return false
	}
	for _, allowed := range SysctlPrefixes {
		if strings.HasPrefix(prefix, allowed) {
			return true
		}
	}
	return false
}
