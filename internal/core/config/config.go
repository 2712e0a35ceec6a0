package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}

type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
}

type Log struct {
	Level string
	JSON  bool
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Local 本地后端：单进程嵌入式键值库
type Local struct {
	Path string `mapstructure:"path"` // bbolt 数据文件
}

// Mongo 远端后端：文档库。URI 为空视为未配置，选择器切远端时直接拒绝。
type Mongo struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// DataSource 激活后端的选择，状态持久化在两个存储之外的 mode 文件里
type DataSource struct {
	Mode     string `mapstructure:"mode"`      // "local" / "remote"
	ModeFile string `mapstructure:"mode_file"` // 运行期切换的落盘位置
}

// Seed 空库播种用的初始管理员
type Seed struct {
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

type Config struct {
	App        App
	Log        Log
	JWT        JWT
	Redis      Redis      `mapstructure:"redis"`
	Local      Local      `mapstructure:"local"`
	Mongo      Mongo      `mapstructure:"mongo"`
	DataSource DataSource `mapstructure:"datasource"`
	Seed       Seed       `mapstructure:"seed"`
}

func Load(path string) *Config {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 缺省值：开箱即用本地后端
	v.SetDefault("local.path", "./data/markethub.db")
	v.SetDefault("datasource.mode", "local")
	v.SetDefault("datasource.mode_file", "./data/datasource.mode")
	v.SetDefault("mongo.database", "markethub")
	v.SetDefault("mongo.timeout_sec", 10)
	v.SetDefault("seed.admin_email", "admin@markethub.local")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("read config: %v", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		log.Fatalf("unmarshal config: %v", err)
	}
	return &c
}
