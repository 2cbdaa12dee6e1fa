// Package config implements the declarative value-spec resolver (spec §9
// "Config-value resolution"): a small sum type mapping a resolution mode to
// a runtime value, handled centrally so nodes never inline their own env
// lookups.
package config

import (
	cryptorand "crypto/rand"
	"math/big"
	"os"

	"github.com/google/uuid"

	"github.com/kart-io/flowagent/errors"
)

// Mode selects how a Value is resolved.
type Mode string

const (
	ModeFixed   Mode = "fixed"
	ModeDefault Mode = "default"
	ModeEnv     Mode = "env"
	ModeConfig  Mode = "config"
	ModeRandom  Mode = "random"
	ModeUUID    Mode = "uuid"
	ModeInherit Mode = "inherit"
)

// Value is either a bare scalar (Mode == "") or a structured spec with a
// resolution Mode and the parameters that mode needs.
type Value struct {
	// Scalar holds the value directly when Mode is empty.
	Scalar interface{}

	// Mode selects how to resolve a structured value. Empty means Scalar
	// is used verbatim.
	Mode Mode

	// Key is the environment variable name (ModeEnv) or the config-map key
	// (ModeConfig).
	Key string

	// Default is returned by ModeDefault, or as the ModeEnv/ModeConfig
	// fallback when Key is absent.
	Default interface{}

	// RandomLength is the byte length of ModeRandom's hex-encoded output.
	RandomLength int

	// InheritFrom names a run variable to copy (ModeInherit).
	InheritFrom string
}

// Resolver resolves Values against a config map and a set of already-
// resolved run variables (for ModeInherit).
type Resolver struct {
	config map[string]interface{}
	vars   map[string]interface{}
}

// NewResolver creates a Resolver over a node/resource config map and the
// current run's variables.
func NewResolver(config map[string]interface{}, vars map[string]interface{}) *Resolver {
	if config == nil {
		config = map[string]interface{}{}
	}
	if vars == nil {
		vars = map[string]interface{}{}
	}
	return &Resolver{config: config, vars: vars}
}

// Resolve returns the runtime value for v.
func (r *Resolver) Resolve(v Value) (interface{}, error) {
	switch v.Mode {
	case "", ModeFixed:
		return v.Scalar, nil

	case ModeDefault:
		return v.Default, nil

	case ModeEnv:
		if val, ok := os.LookupEnv(v.Key); ok {
			return val, nil
		}
		return v.Default, nil

	case ModeConfig:
		if val, ok := r.config[v.Key]; ok {
			return val, nil
		}
		return v.Default, nil

	case ModeRandom:
		n := v.RandomLength
		if n <= 0 {
			n = 16
		}
		return randomHex(n)

	case ModeUUID:
		return uuid.New().String(), nil

	case ModeInherit:
		if val, ok := r.vars[v.InheritFrom]; ok {
			return val, nil
		}
		return nil, nil

	default:
		return nil, errors.Newf(errors.CodeInvalidConfig, "unknown value mode %q", v.Mode).
			WithComponent("config.resolver").WithOperation("resolve")
	}
}

const hexAlphabet = "0123456789abcdef"

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	for i := range buf {
		idx, err := cryptorand.Int(cryptorand.Reader, big.NewInt(int64(len(hexAlphabet))))
		if err != nil {
			return "", errors.Wrap(err, errors.CodeInternal, "generate random value").WithComponent("config.resolver")
		}
		buf[i] = hexAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
