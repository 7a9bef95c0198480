package conf

import (
	"fmt"
	"net"
	"os"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

type Conf struct {
	Role      string    `yaml:"role"`
	Log       Log       `yaml:"log"`
	Cookie    string    `yaml:"cookie"`
	Listen    string    `yaml:"listen"`
	Server    string    `yaml:"server"`
	Target    string    `yaml:"target"`
	Transport Transport `yaml:"transport"`
	Outbound  Outbound  `yaml:"outbound"`
}

func LoadFromFile(path string) (*Conf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var conf Conf

	if err := yaml.Unmarshal(data, &conf); err != nil {
		return &conf, err
	}

	return Finish(&conf)
}

// Finish applies defaults and validates a config assembled either from a
// YAML file or from command-line flags.
func Finish(conf *Conf) (*Conf, error) {
	validRoles := []string{"client", "server"}
	if !slices.Contains(validRoles, conf.Role) {
		return nil, fmt.Errorf("role must be 'client' or 'server'")
	}

	conf.setDefaults()
	if err := conf.validate(); err != nil {
		return conf, err
	}

	return conf, nil
}

func (c *Conf) setDefaults() {
	c.Log.setDefaults()
	c.Transport.setDefaults(c.Role)
	c.Outbound.setDefaults()

	if c.Role == "client" && c.Listen == "" {
		c.Listen = "127.0.0.1:9909"
	}
}

func (c *Conf) validate() error {
	var allErrors []error

	allErrors = append(allErrors, c.Log.validate()...)
	allErrors = append(allErrors, c.Transport.validate()...)
	allErrors = append(allErrors, c.Outbound.validate()...)

	if err := validateAddr("listen", c.Listen); err != nil {
		allErrors = append(allErrors, err)
	}

	if c.Role == "server" {
		if c.Target != "" {
			if err := validateAddr("target", c.Target); err != nil {
				allErrors = append(allErrors, err)
			}
		}
		if c.Server != "" {
			allErrors = append(allErrors, fmt.Errorf("server address is a client-side option"))
		}
	} else {
		if c.Server == "" {
			allErrors = append(allErrors, fmt.Errorf("client requires a server address"))
		} else if err := validateAddr("server", c.Server); err != nil {
			allErrors = append(allErrors, err)
		}
		if c.Target != "" {
			allErrors = append(allErrors, fmt.Errorf("target is a server-side option"))
		}
		if c.Outbound.Type == "socks5" {
			allErrors = append(allErrors, fmt.Errorf("outbound socks5 is a server-side option"))
		}
	}

	return writeErr(allErrors)
}

func validateAddr(field, addr string) error {
	if strings.TrimSpace(addr) == "" {
		return fmt.Errorf("%s address is required", field)
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return fmt.Errorf("%s address invalid: %w", field, err)
	}
	return nil
}

func writeErr(allErrors []error) error {
	if len(allErrors) > 0 {
		var messages []string
		for _, err := range allErrors {
			messages = append(messages, err.Error())
		}
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(messages, "\n  - "))
	}
	return nil
}
