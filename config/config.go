package config

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultFileName = "md5_browser.yaml"

type Config struct {
	Addr       string `yaml:"addr"`
	DataDir    string `yaml:"dataDir"`
	WebPath    string `yaml:"webPath"`
	Encoding   string `yaml:"encoding"`
	TraceParse bool   `yaml:"traceParse"`
	Loop       bool   `yaml:"loop"`
}

func Default() *Config {
	return &Config{
		Addr:     ":8000",
		DataDir:  ".",
		WebPath:  "web",
		Encoding: GetEncoding().String(),
		Loop:     true,
	}
}

// Load reads yaml over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	c := Default()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, errors.Wrapf(err, "Failed to open config %q", path)
	}
	defer f.Close()

	if err := Decode(f, c); err != nil {
		return nil, errors.Wrapf(err, "Failed to load config %q", path)
	}
	return c, nil
}

func Decode(r io.Reader, c *Config) error {
	if err := yaml.NewDecoder(r).Decode(c); err != nil && err != io.EOF {
		return errors.Wrapf(err, "Failed to decode yaml")
	}
	return nil
}

func (c *Config) Encode(w io.Writer) error {
	e := yaml.NewEncoder(w)
	e.SetIndent(2)
	if err := e.Encode(c); err != nil {
		return errors.Wrapf(err, "Failed to encode yaml")
	}
	return e.Close()
}

// Apply validates c and makes it the process wide configuration
func (c *Config) Apply() error {
	if c.Encoding != "" {
		if err := SetEncoding(c.Encoding); err != nil {
			return err
		}
	}
	gLock.Lock()
	defer gLock.Unlock()
	gConfig = c
	return nil
}

var gLock sync.Mutex
var gConfig = Default()

func Get() *Config {
	gLock.Lock()
	defer gLock.Unlock()
	return gConfig
}
