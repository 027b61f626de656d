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
	Host    string // 监听地址，默认 "0.0.0.0"
	Port    int    // 监听端口，默认 8080
	BaseURL string // 对外可访问的基地址，用于拼接 OAuth 回调与追踪链接
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	LogFile     string // 日志文件路径，留空仅输出到 stdout
	MaxSize     int    // 单个日志文件上限 (MB)，默认 100
	MaxBackups  int    // 保留的历史文件数，默认 3
	MaxAge      int    // 历史文件保留天数，默认 28
	Compress    bool   // 是否压缩历史文件
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥，必须至少 32 字符
	Issuer        string        // JWT 签发者标识，默认 "mailboard"
	AccessExpiry  time.Duration // 访问令牌有效期，默认 15 分钟
	RefreshExpiry time.Duration // 刷新令牌有效期，默认 7 天
}

// ProviderConfig 定义外部发信服务配置
type ProviderConfig struct {
	Default           string        // 默认发信渠道: "resend" 或 "smtp"，Gmail 已授权时优先 Gmail
	FromAddress       string        // 默认发件地址
	FromName          string        // 默认发件人名称
	SendTimeout       time.Duration // 单次发信调用超时，默认 30s
	GmailClientID     string        // Gmail OAuth 客户端 ID
	GmailClientSecret string        // Gmail OAuth 客户端密钥
	GmailRedirectURL  string        // Gmail OAuth 回调地址，留空按 BaseURL 拼接
	ResendAPIKey      string        // Resend API Key
	SMTPAddr          string        // SMTP 中继地址，格式 "host:port"
	SMTPUsername      string        // SMTP 认证用户名
	SMTPPassword      string        // SMTP 认证密码
}

// DispatchConfig 定义排期邮件投递轮询配置
type DispatchConfig struct {
	Interval   time.Duration // 轮询间隔，默认 30s
	MaxWorkers int           // 批量发送的并发协程数，默认 4
	QueueSize  int           // 发送任务队列长度，默认 64
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig   // HTTP 服务器配置
	CORS     CORSConfig     // 跨域配置
	Log      LogConfig      // 日志配置
	Database DatabaseConfig // 数据库配置
	Redis    RedisConfig    // Redis 配置
	JWT      JWTConfig      // JWT 认证配置
	Provider ProviderConfig // 发信服务配置
	Dispatch DispatchConfig // 排期投递配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//   1. 系统环境变量（最高优先级）
//   2. .env 文件（如果存在）
//   3. 默认值
//
// 环境变量前缀: MAILBOARD_
// 例如: MAILBOARD_SERVER_HOST, MAILBOARD_JWT_SECRET
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("mailboard")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.log_file", "")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", false)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "mailboard")
	viper.SetDefault("jwt.access_expiry", "15m")
	viper.SetDefault("jwt.refresh_expiry", "168h")
	viper.SetDefault("provider.default", "resend")
	viper.SetDefault("provider.from_address", "")
	viper.SetDefault("provider.from_name", "")
	viper.SetDefault("provider.send_timeout", "30s")
	viper.SetDefault("provider.gmail_client_id", "")
	viper.SetDefault("provider.gmail_client_secret", "")
	viper.SetDefault("provider.gmail_redirect_url", "")
	viper.SetDefault("provider.resend_api_key", "")
	viper.SetDefault("provider.smtp_addr", "")
	viper.SetDefault("provider.smtp_username", "")
	viper.SetDefault("provider.smtp_password", "")
	viper.SetDefault("dispatch.interval", "30s")
	viper.SetDefault("dispatch.max_workers", 4)
	viper.SetDefault("dispatch.queue_size", 64)

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("jwt.access_expiry"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	refreshExpiry, err := time.ParseDuration(viper.GetString("jwt.refresh_expiry"))
	if err != nil {
		refreshExpiry = 7 * 24 * time.Hour
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set MAILBOARD_JWT_SECRET environment variable")
	}

	// JWT secret 必须至少 32 字符
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	sendTimeout, err := time.ParseDuration(viper.GetString("provider.send_timeout"))
	if err != nil || sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}

	dispatchInterval, err := time.ParseDuration(viper.GetString("dispatch.interval"))
	if err != nil || dispatchInterval <= 0 {
		dispatchInterval = 30 * time.Second
	}

	maxWorkers := viper.GetInt("dispatch.max_workers")
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	queueSize := viper.GetInt("dispatch.queue_size")
	if queueSize <= 0 {
		queueSize = 64
	}

	defaultProvider := strings.ToLower(viper.GetString("provider.default"))
	if defaultProvider != "resend" && defaultProvider != "smtp" {
		return nil, fmt.Errorf("invalid provider.default: %q (supported: resend, smtp)", defaultProvider)
	}

	baseURL := strings.TrimRight(viper.GetString("server.base_url"), "/")

	gmailRedirect := viper.GetString("provider.gmail_redirect_url")
	if gmailRedirect == "" {
		gmailRedirect = baseURL + "/api/gmail/callback"
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:    viper.GetString("server.host"),
			Port:    viper.GetInt("server.port"),
			BaseURL: baseURL,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			LogFile:     viper.GetString("log.log_file"),
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
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		Provider: ProviderConfig{
			Default:           defaultProvider,
			FromAddress:       viper.GetString("provider.from_address"),
			FromName:          viper.GetString("provider.from_name"),
			SendTimeout:       sendTimeout,
			GmailClientID:     viper.GetString("provider.gmail_client_id"),
			GmailClientSecret: viper.GetString("provider.gmail_client_secret"),
			GmailRedirectURL:  gmailRedirect,
			ResendAPIKey:      viper.GetString("provider.resend_api_key"),
			SMTPAddr:          viper.GetString("provider.smtp_addr"),
			SMTPUsername:      viper.GetString("provider.smtp_username"),
			SMTPPassword:      viper.GetString("provider.smtp_password"),
		},
		Dispatch: DispatchConfig{
			Interval:   dispatchInterval,
			MaxWorkers: maxWorkers,
			QueueSize:  queueSize,
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
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
//   1. 当前目录的 .env
//   2. 父目录的 .env（用于从子目录运行的情况）
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	// 尝试当前目录的 .env
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	// 尝试父目录的 .env
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
