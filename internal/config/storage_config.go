package config

const (
	StorageDriverMemory = "memory"
	StorageDriverSQLite = "sqlite"
	StorageDriverRedis  = "redis"
)

type StorageConfig interface {
	GetStorageDriver() string
	GetStoragePath() string
	GetStorageKeyPrefix() string
	GetRedisAddr() string
	GetRedisDB() int
}

type Storage struct {
	StorageDriver    string `env:"STORAGE_DRIVER, default=sqlite"`
	StoragePath      string `env:"STORAGE_PATH, default=./data/auth.db"`
	StorageKeyPrefix string `env:"STORAGE_KEY_PREFIX, default=@interiors"`
	RedisAddr        string `env:"REDIS_ADDR, default=localhost:6379"`
	RedisDB          int    `env:"REDIS_DB, default=0"`
}

var _ StorageConfig = Storage{}

func (s Storage) GetStorageDriver() string    { return s.StorageDriver }
func (s Storage) GetStoragePath() string      { return s.StoragePath }
func (s Storage) GetStorageKeyPrefix() string { return s.StorageKeyPrefix }
func (s Storage) GetRedisAddr() string        { return s.RedisAddr }
func (s Storage) GetRedisDB() int             { return s.RedisDB }
