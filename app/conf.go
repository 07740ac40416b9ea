package app

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const DefaultEnvPrefix = "TCPLIB"

type confOptions struct {
	envPrefix string
}

type ConfOption func(o *confOptions)

// ConfEnvPrefix changes the environment variable prefix. An empty prefix
// turns environment overrides off.
func ConfEnvPrefix(prefix string) ConfOption {
	return func(o *confOptions) {
		o.envPrefix = prefix
	}
}

// LoadConf fills out in three layers: the values out already holds, the file
// at path when path is not empty (yaml, json or toml by extension) and
// environment variables named PREFIX_SECTION_KEY. out is decoded through
// mapstructure tags and must also carry yaml tags with the same names.
func LoadConf(path string, out any, opt ...ConfOption) error {
	opts := confOptions{envPrefix: DefaultEnvPrefix}
	for _, o := range opt {
		o(&opts)
	}

	defaults, err := yaml.Marshal(out)
	if err != nil {
		return errors.Wrap(err, "app: load config marshal defaults")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err = v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return errors.Wrap(err, "app: load config read defaults")
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(strings.TrimPrefix(filepath.Ext(path), "."))
		if err = v.MergeInConfig(); err != nil {
			return errors.Wrapf(err, "app: load config %s", path)
		}
	}

	if opts.envPrefix != "" {
		v.SetEnvPrefix(opts.envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	if err = v.Unmarshal(out); err != nil {
		return errors.Wrapf(err, "app: load config %s unmarshal", path)
	}
	return nil
}

// DumpConf writes conf as yaml.
func DumpConf(w io.Writer, conf any) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return errors.Wrap(err, "app: dump config marshal")
	}
	if _, err = w.Write(data); err != nil {
		return errors.Wrap(err, "app: dump config write")
	}
	return nil
}
