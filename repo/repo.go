package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	rootPathEnvVar = "POLLING_PATH"

	envPrefix = "POLLING"

	cfgFileName = "polling.toml"

	defaultRepoRoot = "~/.polling"

	LogsDirName = "logs"

	LedgerDirName = "ledger"
)

type Repo struct {
	Config *Config
}

// Exist check if the file with the given path exits.
func Exist(path string) bool {
	fi, err := os.Lstat(path)
	if fi != nil || (err != nil && !os.IsNotExist(err)) {
		return true
	}

	return false
}

// Load reads the config of the repo at repoRoot, creating the repo with the
// default config when it has none yet.
func Load(repoRoot string) (*Repo, error) {
	rootPath, err := LoadRepoRootFromEnv(repoRoot)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig(rootPath)

	cfgPath := filepath.Join(rootPath, cfgFileName)
	if !Exist(cfgPath) {
		if err := os.MkdirAll(rootPath, 0755); err != nil {
			return nil, errors.Wrap(err, "failed to build default config")
		}

		if err := writeConfigWithEnv(cfgPath, cfg); err != nil {
			return nil, errors.Wrap(err, "failed to build default config")
		}
	} else {
		if err := CheckWritable(rootPath); err != nil {
			return nil, err
		}
		if err := readConfigFromFile(cfgPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", cfgPath)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Repo{
		Config: cfg,
	}, nil
}

func (r *Repo) Flush() error {
	if err := writeConfigWithEnv(filepath.Join(r.Config.RepoRoot, cfgFileName), r.Config); err != nil {
		return errors.Wrap(err, "failed to write config")
	}

	return nil
}

func (r *Repo) LedgerPath() string {
	return filepath.Join(r.Config.RepoRoot, LedgerDirName)
}

// Validate checks the values viper cannot check while decoding.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	for name, addr := range map[string]string{
		"governance.token":   c.Governance.Token,
		"governance.creator": c.Governance.Creator,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return errors.Errorf("%s: invalid address %q", name, addr)
		}
	}
	for _, addr := range c.Watch.Addresses {
		if !common.IsHexAddress(addr) {
			return errors.Errorf("watch.addresses: invalid address %q", addr)
		}
	}
	return nil
}

// Deployed returns the token and poll creator addresses recorded by `chain init`.
func (c *Config) Deployed() (token common.Address, creator common.Address, err error) {
	if c.Governance.Token == "" || c.Governance.Creator == "" {
		return common.Address{}, common.Address{}, errors.New("governance contracts are not deployed, run `chain init` first")
	}
	return common.HexToAddress(c.Governance.Token), common.HexToAddress(c.Governance.Creator), nil
}

func writeConfigWithEnv(cfgPath string, config any) error {
	if err := writeConfig(cfgPath, config); err != nil {
		return err
	}
	// overlay environment variables and persist the result
	if err := readConfigFromFile(cfgPath, config); err != nil {
		return errors.Wrapf(err, "failed to read cfg from environment")
	}
	return writeConfig(cfgPath, config)
}

func writeConfig(cfgPath string, config any) error {
	raw, err := MarshalConfig(config)
	if err != nil {
		return err
	}

	return os.WriteFile(cfgPath, []byte(raw), 0644)
}

func MarshalConfig(config any) (string, error) {
	buf := bytes.NewBuffer([]byte{})
	e := toml.NewEncoder(buf)
	e.SetIndentTables(true)
	e.SetArraysMultiline(true)
	if err := e.Encode(config); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// LoadRepoRootFromEnv resolves the repo root: the given path, then
// $POLLING_PATH, then ~/.polling.
func LoadRepoRootFromEnv(repoRoot string) (string, error) {
	if repoRoot != "" {
		return repoRoot, nil
	}
	repoRoot = os.Getenv(rootPathEnvVar)
	var err error
	if len(repoRoot) == 0 {
		repoRoot, err = homedir.Expand(defaultRepoRoot)
	}
	return repoRoot, err
}

func readConfigFromFile(cfgFilePath string, config any) error {
	vp := viper.New()
	vp.SetConfigFile(cfgFilePath)
	vp.SetConfigType("toml")
	return readConfig(vp, config)
}

func readConfig(vp *viper.Viper, config any) error {
	vp.AutomaticEnv()
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := vp.ReadInConfig(); err != nil {
		return err
	}

	return vp.Unmarshal(config)
}

func CheckWritable(dir string) error {
	_, err := os.Stat(dir)
	if err == nil {
		// dir exists, make sure we can write to it
		testfile := filepath.Join(dir, "test")
		fi, err := os.Create(testfile)
		if err != nil {
			if os.IsPermission(err) {
				return fmt.Errorf("%s is not writeable by the current user", dir)
			}
			return fmt.Errorf("unexpected error while checking writeablility of repo root: %s", err)
		}
		fi.Close()
		return os.Remove(testfile)
	}

	if os.IsNotExist(err) {
		// dir doesn't exist, check that we can create it
		return os.Mkdir(dir, 0775)
	}

	if os.IsPermission(err) {
		return fmt.Errorf("cannot write to %s, incorrect permissions", dir)
	}

	return err
}
