package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AntonStoeckl/dynamic-plugins-go/executor"
	"github.com/AntonStoeckl/dynamic-plugins-go/interceptor"
)

var ErrInvalidConfig = errors.New("invalid configuration")
var ErrUnknownPlugin = errors.New("unknown plugin")
var ErrInvalidProperty = errors.New("invalid plugin property")
var ErrDuplicatePlugin = errors.New("plugin already registered")

const maxFileSize = 1024 * 1024

var validate = validator.New(validator.WithRequiredStructEnabled())

// File is the content of a configuration file.
//
//	plugins:
//	  - name: querylimit
//	    properties: { limit: "50", dbtype: "mysql" }
//	  - name: tracelog
//	settings:
//	  defaultStatementTimeout: 5s
//	  mapUnderscoreToCamelCase: true
//
// Plugins are registered in file order, so the last one listed sees a call first.
type File struct {
	Plugins  []PluginConfig `yaml:"plugins" validate:"dive"`
	Settings Settings       `yaml:"settings"`
}

// PluginConfig declares one plugin and its properties.
type PluginConfig struct {
	Name       string            `yaml:"name" validate:"required,printascii,max=64"`
	Properties map[string]string `yaml:"properties" validate:"dive,keys,required,endkeys"`
}

// Settings are the executor settings of a configuration file.
type Settings struct {
	DefaultStatementTimeout  time.Duration `yaml:"defaultStatementTimeout" validate:"gte=0"`
	MapUnderscoreToCamelCase bool          `yaml:"mapUnderscoreToCamelCase"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	if info.Size() > maxFileSize {
		return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("%s is %d bytes, the limit is %d", path, info.Size(), maxFileSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	return Parse(data)
}

// Parse decodes and validates a configuration. Unknown keys are rejected; empty input is an empty configuration.
func Parse(data []byte) (*File, error) {
	f := &File{}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	if err := validate.Struct(f); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	return f, nil
}

// Options returns the executor options of the settings.
func (f *File) Options() []executor.Option {
	return []executor.Option{
		executor.WithDefaultStatementTimeout(f.Settings.DefaultStatementTimeout),
		executor.WithMapUnderscoreToCamelCase(f.Settings.MapUnderscoreToCamelCase),
	}
}

// Interceptors builds the declared plugins in file order.
func (f *File) Interceptors(registry *Registry) ([]interceptor.Interceptor, error) {
	interceptors := make([]interceptor.Interceptor, 0, len(f.Plugins))

	for _, pc := range f.Plugins {
		i, err := registry.Build(pc)
		if err != nil {
			return nil, err
		}
		interceptors = append(interceptors, i)
	}

	return interceptors, nil
}

// Apply builds the declared plugins and adds them to configuration.
func (f *File) Apply(configuration *executor.Configuration, registry *Registry) error {
	interceptors, err := f.Interceptors(registry)
	if err != nil {
		return err
	}

	for _, i := range interceptors {
		if err = configuration.AddInterceptor(i); err != nil {
			return err
		}
	}

	return nil
}

// NewConfiguration creates an executor.Configuration from the settings and plugins of f.
// Additional options are applied after the settings.
func NewConfiguration(f *File, registry *Registry, options ...executor.Option) (*executor.Configuration, error) {
	configuration, err := executor.NewConfiguration(append(f.Options(), options...)...)
	if err != nil {
		return nil, err
	}

	if err = f.Apply(configuration, registry); err != nil {
		return nil, err
	}

	return configuration, nil
}
