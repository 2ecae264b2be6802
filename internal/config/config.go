package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// RenameConfig 定义重命名引擎的核心业务配置
type RenameConfig struct {
	RegistryTTL      time.Duration // 待命下载条目的存活时间，默认 5 分钟
	MatchThreshold   float64       // 模糊匹配的最低相似度
	RelaxedThreshold float64       // 单条待命时放宽到的最低相似度
	SessionTTL       time.Duration // 空闲会话的回收时间，默认 30 分钟
}

// LicenseConfig 定义许可验证与试用配额配置
type LicenseConfig struct {
	Secret          string        // 许可键 HMAC 签名密钥
	JWTSecret       string        // 许可令牌签名密钥，必须至少 32 字符
	Issuer          string        // 许可令牌签发者标识
	TokenExpiry     time.Duration // 许可令牌有效期，默认 24 小时
	TrialDays       int           // 试用期天数，默认 7
	TrialDailyLimit int           // 试用期每日重命名上限，默认 3
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，浏览器扩展来源形如 "chrome-extension://<id>"
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，空则只输出到控制台
	MaxSize     int    // 单个日志文件大小上限（MB）
	MaxBackups  int    // 保留的轮转文件数
	MaxAge      int    // 轮转文件保留天数
	Compress    bool   // 是否压缩轮转文件
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，空值使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Enabled  bool   // 是否启用 Redis 缓存
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig   // HTTP 服务器配置
	Rename   RenameConfig   // 重命名引擎配置
	License  LicenseConfig  // 许可与试用配置
	CORS     CORSConfig     // 跨域配置
	Log      LogConfig      // 日志配置
	Database DatabaseConfig // 数据库配置
	Redis    RedisConfig    // Redis 配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: ATTACHRENAME_
// 例如: ATTACHRENAME_SERVER_HOST, ATTACHRENAME_LICENSE_SECRET
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("attachrename")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("rename.registry_ttl", "5m")
	viper.SetDefault("rename.match_threshold", 0.6)
	viper.SetDefault("rename.relaxed_threshold", 0.2)
	viper.SetDefault("rename.session_ttl", "30m")
	viper.SetDefault("license.secret", "")
	viper.SetDefault("license.jwt_secret", "change-me-in-production")
	viper.SetDefault("license.issuer", "attachrename")
	viper.SetDefault("license.token_expiry", "24h")
	viper.SetDefault("license.trial_days", 7)
	viper.SetDefault("license.trial_daily_limit", 3)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	registryTTL, err := time.ParseDuration(viper.GetString("rename.registry_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid rename.registry_ttl: %w", err)
	}

	sessionTTL, err := time.ParseDuration(viper.GetString("rename.session_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid rename.session_ttl: %w", err)
	}

	matchThreshold := viper.GetFloat64("rename.match_threshold")
	relaxedThreshold := viper.GetFloat64("rename.relaxed_threshold")
	if matchThreshold <= 0 || matchThreshold > 1 {
		return nil, fmt.Errorf("rename.match_threshold must be in (0, 1]")
	}
	if relaxedThreshold < 0 || relaxedThreshold >= matchThreshold {
		return nil, fmt.Errorf("rename.relaxed_threshold must be in [0, match_threshold)")
	}

	tokenExpiry, err := time.ParseDuration(viper.GetString("license.token_expiry"))
	if err != nil {
		tokenExpiry = 24 * time.Hour
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	licenseSecret := viper.GetString("license.secret")
	if licenseSecret == "" {
		return nil, fmt.Errorf("SECURITY ERROR: license secret is required. Please set ATTACHRENAME_LICENSE_SECRET environment variable")
	}

	jwtSecret := viper.GetString("license.jwt_secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set ATTACHRENAME_LICENSE_JWT_SECRET environment variable")
	}

	// JWT secret 必须至少 32 字符
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	trialDays := viper.GetInt("license.trial_days")
	if trialDays <= 0 {
		trialDays = 7
	}
	trialDailyLimit := viper.GetInt("license.trial_daily_limit")
	if trialDailyLimit <= 0 {
		trialDailyLimit = 3
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Rename: RenameConfig{
			RegistryTTL:      registryTTL,
			MatchThreshold:   matchThreshold,
			RelaxedThreshold: relaxedThreshold,
			SessionTTL:       sessionTTL,
		},
		License: LicenseConfig{
			Secret:          licenseSecret,
			JWTSecret:       jwtSecret,
			Issuer:          viper.GetString("license.issuer"),
			TokenExpiry:     tokenExpiry,
			TrialDays:       trialDays,
			TrialDailyLimit: trialDailyLimit,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
			MaxSize:     viper.GetInt("log.max_size"),
			MaxBackups:  viper.GetInt("log.max_backups"),
			MaxAge:      viper.GetInt("log.max_age"),
			Compress:    viper.GetBool("log.compress"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
//
// 参数:
//   - value: 逗号分隔的字符串，如 "item1,item2,item3"
//
// 返回值:
//   - []string: 解析后的字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	// 尝试当前目录的 .env
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	// 尝试父目录的 .env（从 backend/ 目录运行时）
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
