package config

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gitlab.grandhoo.com/rock/rock_pattern/rds_config"
)

type AllConfig struct {
	Logger Logger `mapstructure:"logger" json:"logger"`
	Server Server `mapstructure:"server" json:"server"`
	Mining Mining `mapstructure:"mining" json:"mining"`
	Db     Db     `mapstructure:"db" json:"db"`
}

type Logger struct {
	Level        string        `mapstructure:"level" json:"level"`
	Path         string        `mapstructure:"path" json:"path"`
	MaxAge       time.Duration `mapstructure:"maxAge" json:"maxAge"`
	RotationTime time.Duration `mapstructure:"rotationTime" json:"rotationTime"`
	RotationSize int64         `mapstructure:"rotationSize" json:"rotationSize"`
}

type Server struct {
	Name      string   `mapstructure:"name" json:"name"`
	GinPorts  []uint32 `mapstructure:"ginPorts" json:"ginPorts"`
	SentryDsn string   `mapstructure:"sentryDsn" json:"sentryDsn"`
}

// Mining 挖掘参数, 请求里未指定的字段用这里的值
type Mining struct {
	MinSupport    int           `mapstructure:"minSupport" json:"minSupport"`
	NumIterations int           `mapstructure:"numIterations" json:"numIterations"`
	Sita          float64       `mapstructure:"sita" json:"sita"`
	M             float64       `mapstructure:"m" json:"m"`
	MinCovered    int           `mapstructure:"minCovered" json:"minCovered"`
	Workers       int           `mapstructure:"workers" json:"workers"`
	Seed          int64         `mapstructure:"seed" json:"seed"`
	LabelTimeout  time.Duration `mapstructure:"labelTimeout" json:"labelTimeout"`
	LabelColumn   string        `mapstructure:"labelColumn" json:"labelColumn"` // 为空时优先用 label 列, 否则最后一列
}

type Db struct {
	Driver string `mapstructure:"driver" json:"driver"`
	Dsn    string `mapstructure:"dsn" json:"dsn"`
}

var All = Default()

func Default() *AllConfig {
	ports := make([]uint32, len(rds_config.GinPorts))
	copy(ports, rds_config.GinPorts)
	return &AllConfig{
		Logger: Logger{
			Level:        rds_config.LogLevel,
			Path:         rds_config.LogPath,
			MaxAge:       rds_config.LogMaxAge,
			RotationTime: rds_config.LogRotationTime,
			RotationSize: rds_config.LogRotationSize,
		},
		Server: Server{Name: "rock_pattern", GinPorts: ports},
		Mining: Mining{
			MinSupport:    rds_config.MinSupport,
			NumIterations: rds_config.NumIterations,
			Sita:          rds_config.Sita,
			M:             rds_config.M,
			MinCovered:    rds_config.MinCovered,
			Workers:       rds_config.WorkNum,
			Seed:          rds_config.Seed,
			LabelTimeout:  rds_config.LabelTimeout,
		},
		Db: Db{Driver: rds_config.DbDriverSqlite, Dsn: rds_config.DbDsn},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.path", d.Logger.Path)
	v.SetDefault("logger.maxAge", d.Logger.MaxAge)
	v.SetDefault("logger.rotationTime", d.Logger.RotationTime)
	v.SetDefault("logger.rotationSize", d.Logger.RotationSize)
	v.SetDefault("server.name", d.Server.Name)
	v.SetDefault("server.ginPorts", d.Server.GinPorts)
	v.SetDefault("server.sentryDsn", "")
	v.SetDefault("mining.minSupport", d.Mining.MinSupport)
	v.SetDefault("mining.numIterations", d.Mining.NumIterations)
	v.SetDefault("mining.sita", d.Mining.Sita)
	v.SetDefault("mining.m", d.Mining.M)
	v.SetDefault("mining.minCovered", d.Mining.MinCovered)
	v.SetDefault("mining.workers", d.Mining.Workers)
	v.SetDefault("mining.seed", d.Mining.Seed)
	v.SetDefault("mining.labelTimeout", d.Mining.LabelTimeout)
	v.SetDefault("mining.labelColumn", d.Mining.LabelColumn)
	v.SetDefault("db.driver", d.Db.Driver)
	v.SetDefault("db.dsn", d.Db.Dsn)
}

// Load 读取配置文件(yaml/json), path 为空时只用默认值和环境变量.
// 环境变量形如 ROCK_PATTERN_MINING_SITA=0.6
func Load(path string) (*AllConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(rds_config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	conf := &AllConfig{}
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Override 用传入的json替换对应配置项, 未出现的字段保持原值
func (c *AllConfig) Override(raw string) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), c); err != nil {
		return errors.Wrap(err, "unmarshal rock config")
	}
	return c.Validate()
}

func (c *AllConfig) Validate() error {
	return c.Mining.Validate()
}

func (m Mining) Validate() error {
	switch {
	case m.MinSupport < 1:
		return errors.Errorf("minSupport must be >= 1, got %d", m.MinSupport)
	case m.NumIterations < 1:
		return errors.Errorf("numIterations must be >= 1, got %d", m.NumIterations)
	case m.Sita <= 0 || m.Sita >= 1:
		return errors.Errorf("sita must be in (0,1), got %v", m.Sita)
	case m.M < 0:
		return errors.Errorf("m must be >= 0, got %v", m.M)
	case m.MinCovered < 0:
		return errors.Errorf("minCovered must be >= 0, got %d", m.MinCovered)
	case m.Workers < 1:
		return errors.Errorf("workers must be >= 1, got %d", m.Workers)
	}
	return nil
}
