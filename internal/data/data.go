package data

import (
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"

	"github.com/Mr-Infect/SSI-management-systemv2/internal/conf"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/database"
	"github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/logger"
	pkgminio "github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/minio"
	pkgredis "github.com/Mr-Infect/SSI-management-systemv2/internal/pkg/redis"
)

// Data 基础设施客户端集合
type Data struct {
	DB          *database.DB
	RedisClient *redis.Client
	MinIOClient *minio.Client
}

// NewData 初始化数据层，返回清理函数
func NewData(cfg *conf.Config, log *logger.Logger) (*Data, func(), error) {
	db, err := initDB(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}

	redisClient, err := pkgredis.New(&pkgredis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: 10,
	}, log)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to init redis: %w", err)
	}

	minioClient, err := pkgminio.New(&pkgminio.Config{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		UseSSL:    cfg.MinIO.UseSSL,
		Bucket:    cfg.MinIO.Bucket,
	}, log)
	if err != nil {
		redisClient.Close()
		db.Close()
		return nil, nil, fmt.Errorf("failed to init minio: %w", err)
	}

	d := &Data{
		DB:          db,
		RedisClient: redisClient,
		MinIOClient: minioClient,
	}

	cleanup := func() {
		log.Info("closing data layer resources")
		if err := redisClient.Close(); err != nil {
			log.Warn("failed to close redis client")
		}
		if err := db.Close(); err != nil {
			log.Warn("failed to close database")
		}
	}

	return d, cleanup, nil
}

func initDB(cfg *conf.Config, log *logger.Logger) (*database.DB, error) {
	dbCfg := database.DefaultConfig()
	dbCfg.Host = cfg.Database.Host
	dbCfg.Port = cfg.Database.Port
	dbCfg.User = cfg.Database.User
	dbCfg.Password = cfg.Database.Password
	dbCfg.DBName = cfg.Database.DBName
	if cfg.Database.SSLMode != "" {
		dbCfg.SSLMode = cfg.Database.SSLMode
	}
	dbCfg.AutoMigrate = cfg.Database.AutoMigrate

	return database.New(dbCfg, log)
}
