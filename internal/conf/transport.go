package conf

import (
	"fmt"
	"slices"
	"strings"
)

type Transport struct {
	Type string `yaml:"type"`
	KCP  KCP    `yaml:"kcp"`
	QUIC QUIC   `yaml:"quic"`
}

func (t *Transport) setDefaults(role string) {
	if t.Type == "" {
		t.Type = "tcp"
	}
	t.Type = strings.ToLower(strings.TrimSpace(t.Type))

	t.KCP.setDefaults()
	t.QUIC.setDefaults(role)
}

func (t *Transport) validate() []error {
	var errors []error

	validTypes := []string{"tcp", "kcp", "quic"}
	if !slices.Contains(validTypes, t.Type) {
		errors = append(errors, fmt.Errorf("transport type must be one of %v, got %q", validTypes, t.Type))
	}

	switch t.Type {
	case "kcp":
		errors = append(errors, t.KCP.validate()...)
	case "quic":
		errors = append(errors, t.QUIC.validate()...)
	}

	return errors
}

type KCP struct {
	DataShards   int `yaml:"data_shards"`   // FEC data shards (default: 10)
	ParityShards int `yaml:"parity_shards"` // FEC parity shards (default: 3)
	SndWnd       int `yaml:"snd_wnd"`       // Send window in packets (default: 1024)
	RcvWnd       int `yaml:"rcv_wnd"`       // Receive window in packets (default: 1024)
	MTU          int `yaml:"mtu"`           // Maximum transmission unit (default: 1350)
}

func (k *KCP) setDefaults() {
	if k.DataShards == 0 {
		k.DataShards = 10
	}
	if k.ParityShards == 0 {
		k.ParityShards = 3
	}
	if k.SndWnd == 0 {
		k.SndWnd = 1024
	}
	if k.RcvWnd == 0 {
		k.RcvWnd = 1024
	}
	if k.MTU == 0 {
		k.MTU = 1350
	}
}

func (k *KCP) validate() []error {
	var errors []error

	if k.DataShards < 0 || k.DataShards > 255 {
		errors = append(errors, fmt.Errorf("KCP data_shards must be between 0-255"))
	}
	if k.ParityShards < 0 || k.ParityShards > 255 {
		errors = append(errors, fmt.Errorf("KCP parity_shards must be between 0-255"))
	}
	if k.SndWnd < 32 || k.SndWnd > 65535 {
		errors = append(errors, fmt.Errorf("KCP snd_wnd must be between 32-65535"))
	}
	if k.RcvWnd < 32 || k.RcvWnd > 65535 {
		errors = append(errors, fmt.Errorf("KCP rcv_wnd must be between 32-65535"))
	}
	if k.MTU < 576 || k.MTU > 1500 {
		errors = append(errors, fmt.Errorf("KCP mtu must be between 576-1500"))
	}

	return errors
}
