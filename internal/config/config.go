// Package config 进程配置：默认值 + YAML 文件 + TAGSCOPE_ 前缀环境变量，
// 后者覆盖前者。
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"tagscope/pkg/model"
)

// Config 配置文件结构体
type Config struct {
	Version string `koanf:"version"`

	Server struct {
		Port int `koanf:"port"`
	} `koanf:"server"`

	Sqlite struct {
		Dsn string `koanf:"dsn"`
	} `koanf:"sqlite"`

	Log struct {
		Level  string   `koanf:"level"`
		Writer []string `koanf:"writer"`
		File   string   `koanf:"file"`
	} `koanf:"log"`

	Monitor struct {
		PageHost    string `koanf:"pagehost"`
		DevToolsURL string `koanf:"devtoolsurl"`
		CdpTarget   string `koanf:"cdptarget"`
	} `koanf:"monitor"`

	Tunables model.Tunables `koanf:"tunables"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	cfg := &Config{Version: "1.0.0"}
	cfg.Server.Port = 8090
	cfg.Sqlite.Dsn = "tagscope.sqlite3"
	cfg.Log.Level = "info"
	cfg.Log.Writer = []string{"console"}
	cfg.Tunables = model.DefaultTunables()
	return cfg
}

// Load 加载配置，path 为空时只应用默认值与环境变量
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider("TAGSCOPE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "TAGSCOPE_")), "_", ".")
	}), nil); err != nil {
		return nil, err
	}

	cfg := NewConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	cfg.Tunables = cfg.Tunables.Normalize()
	return cfg, nil
}
