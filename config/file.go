package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	ncerr "ursend/internal/errors"
)

// File is the on-disk layout of a --config YAML file.  Every key is
// optional; a zero value leaves the corresponding setting alone.
//
//	host: 192.168.10.13
//	port: 30002
//	timeout: 3s
//	newline: true
//	tunnel:
//	  spec: ur@cell-gateway
//	  agent: true
type File struct {
	Host            string        `yaml:"host" validate:"omitempty,ipv4"`
	Port            int           `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Robot           int           `yaml:"robot" validate:"omitempty,min=1,max=25"`
	Subnet          string        `yaml:"subnet" validate:"omitempty,hostname_rfc1123"`
	Timeout         time.Duration `yaml:"timeout" validate:"omitempty,min=1ms,max=5m"`
	Newline         bool          `yaml:"newline"`
	ReplaceNonASCII string        `yaml:"replace_non_ascii" validate:"omitempty,len=1,printascii"`
	Verbose         int           `yaml:"verbose" validate:"min=0,max=3"`
	Stats           bool          `yaml:"stats"`
	Tunnel          TunnelFile    `yaml:"tunnel"`
}

// TunnelFile is the "tunnel:" section of a config file.
type TunnelFile struct {
	Spec          string `yaml:"spec"`
	Key           string `yaml:"key" validate:"omitempty,filepath"`
	Agent         bool   `yaml:"agent"`
	StrictHostKey bool   `yaml:"strict_hostkey"`
	KnownHosts    string `yaml:"known_hosts" validate:"omitempty,filepath"`
}

var validate = newValidator()

// newValidator reports fields by their YAML key rather than the Go name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoadFile reads path and overlays its settings onto cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ncerr.ConfigError{Field: "config", Value: path, Message: err.Error()}
	}
	f, err := ParseFile(data)
	if err != nil {
		return err
	}
	f.apply(cfg)
	cfg.ConfigFile = path
	return nil
}

// ParseFile decodes and validates a config document.  Unknown keys are
// rejected so a typo does not silently fall back to a default.
func ParseFile(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !ncerr.Is(err, io.EOF) {
		return nil, &ncerr.ConfigError{Field: "config", Message: err.Error()}
	}

	if err := validate.Struct(&f); err != nil {
		var verrs validator.ValidationErrors
		if !ncerr.As(err, &verrs) || len(verrs) == 0 {
			return nil, &ncerr.ConfigError{Field: "config", Message: err.Error()}
		}
		e := verrs[0]
		return nil, &ncerr.ConfigError{
			Field:   yamlPath(e.Namespace()),
			Value:   e.Value(),
			Message: formatValidationMessage(e),
		}
	}
	return &f, nil
}

func (f *File) apply(cfg *Config) {
	if f.Host != "" {
		cfg.Host = f.Host
	}
	if f.Port != 0 {
		cfg.Port = f.Port
	}
	if f.Robot != 0 {
		cfg.RobotID = f.Robot
	}
	if f.Subnet != "" {
		cfg.Subnet = f.Subnet
	}
	if f.Timeout != 0 {
		cfg.Timeout = f.Timeout
	}
	if f.Newline {
		cfg.Newline = true
	}
	if f.ReplaceNonASCII != "" {
		cfg.Replacement = f.ReplaceNonASCII
	}
	if f.Verbose != 0 {
		cfg.Verbose = f.Verbose
	}
	if f.Stats {
		cfg.Stats = true
	}

	t := f.Tunnel
	if t.Spec != "" {
		cfg.TunnelSpec = t.Spec
	}
	if t.Key != "" {
		cfg.SSHKeyPath = t.Key
	}
	if t.Agent {
		cfg.UseSSHAgent = true
	}
	if t.StrictHostKey {
		cfg.StrictHostKey = true
	}
	if t.KnownHosts != "" {
		cfg.KnownHostsPath = t.KnownHosts
	}
}

// formatValidationMessage turns a validator failure into a sentence.
func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "ipv4":
		return "must be a dotted-quad IPv4 address"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s character(s)", e.Param())
	case "printascii":
		return "must be a printable ASCII character"
	case "hostname_rfc1123":
		return "must look like a dotted address prefix, e.g. 192.168.10"
	case "filepath":
		return "must be a file path"
	default:
		return fmt.Sprintf("failed %s validation", e.Tag())
	}
}

// yamlPath drops the root struct name from a validator namespace,
// leaving the dotted key a user wrote ("tunnel.key").
func yamlPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
