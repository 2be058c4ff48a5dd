package repo

import (
	"time"
)

type Config struct {
	RepoRoot string `mapstructure:"-" toml:"-"`
	// node to watch, the local ledger is used when empty
	DialUrl    string     `mapstructure:"dial_url" toml:"dial_url"`
	Log        Log        `mapstructure:"log" toml:"log"`
	Governance Governance `mapstructure:"governance" toml:"governance"`
	Watch      Watch      `mapstructure:"watch" toml:"watch"`
	Metrics    Metrics    `mapstructure:"metrics" toml:"metrics"`
}

type Log struct {
	Level        string        `mapstructure:"level" toml:"level"`
	Filename     string        `mapstructure:"filename" toml:"filename"`
	ReportCaller bool          `mapstructure:"report_caller" toml:"report_caller"`
	MaxAge       time.Duration `mapstructure:"max_age" toml:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time" toml:"rotation_time"`
}

type Governance struct {
	TokenName    string `mapstructure:"token_name" toml:"token_name"`
	CreationCost uint64 `mapstructure:"creation_cost" toml:"creation_cost"`

	// filled in by `chain init`
	Token   string `mapstructure:"token" toml:"token"`
	Creator string `mapstructure:"creator" toml:"creator"`
}

type Watch struct {
	// beginning of the queried range, 0 means genesis block
	FromBlock uint64 `mapstructure:"from_block" toml:"from_block"`
	// end of the range, 0 means latest block
	ToBlock   uint64   `mapstructure:"to_block" toml:"to_block"`
	Addresses []string `mapstructure:"addresses" toml:"addresses"`
	// Empty means PollCreated, Yes and No in first position. Examples:
	// {{A}}              matches topic A in first position
	// {{}, {B}}          matches any topic in first position AND B in second position
	// {{A}, {B}}         matches topic A in first position AND B in second position
	// {{A, B}, {C, D}}   matches topic (A OR B) in first position AND (C OR D) in second position
	Topics [][]string `mapstructure:"topics" toml:"topics"`
	// number of poll records kept in memory
	CacheSize int `mapstructure:"cache_size" toml:"cache_size"`
}

type Metrics struct {
	Enable     bool   `mapstructure:"enable" toml:"enable"`
	ListenAddr string `mapstructure:"listen_addr" toml:"listen_addr"`
}

func DefaultConfig(repoRoot string) *Config {
	return &Config{
		RepoRoot: repoRoot,
		DialUrl:  "",
		Log: Log{
			Level:        "info",
			Filename:     "polling.log",
			ReportCaller: false,
			MaxAge:       30 * 24 * time.Hour,
			RotationTime: 24 * time.Hour,
		},
		Governance: Governance{
			TokenName:    "LivepeerToken",
			CreationCost: 500,
		},
		Watch: Watch{
			FromBlock: 0,
			ToBlock:   0,
			Addresses: []string{},
			Topics:    [][]string{},
			CacheSize: 256,
		},
		Metrics: Metrics{
			Enable:     true,
			ListenAddr: "localhost:9992",
		},
	}
}
