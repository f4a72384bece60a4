package rds_config

import "time"

var GinPorts = []uint32{19123, 19124, 19125, 19126, 19127, 19128, 19129, 19130}

// 挖掘参数默认值
const (
	MinSupport    = 3   // label support below this makes a pattern terminal
	NumIterations = 100 // MCTS iterations per label
	Sita          = 0.7 // jaccard threshold of the diversity cover
	M             = 1.0 // m-estimate smoothing
	MinCovered    = 2   // minimal true positives of a surviving rule
	Seed          = int64(1)
)

// LabelTimeout 单个label的搜索时间上限, 0 表示只受迭代次数限制
const LabelTimeout = time.Duration(0)

const WorkNum = 4

const (
	LabelColumn = "label"
	// SkipColumn 读csv时忽略的列
	SkipColumnId = "id"
)

const (
	OutputPath = "output"
	DotSuffix  = ".dot"
	CsvSuffix  = ".csv"
	MsgSuffix  = ".msgpack"
)

// 日志
const (
	LogLevel        = "info"
	LogPath         = "logs"
	LogMaxAge       = 7 * 24 * time.Hour
	LogRotationTime = 24 * time.Hour
	LogRotationSize = 100 * 1024 * 1024
)

const (
	DbDriverSqlite   = "sqlite"
	DbDriverPostgres = "postgres"
	DbDsn            = "rock_pattern.db"
)

const EnvPrefix = "ROCK_PATTERN"
