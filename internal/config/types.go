package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ExchangeConfig 描述行情数据源连接信息。
type ExchangeConfig struct {
	Name       string      `mapstructure:"name"`
	Markets    []string    `mapstructure:"markets"`
	APIKey     string      `mapstructure:"api_key"`
	APISecret  string      `mapstructure:"api_secret"`
	APIPass    string      `mapstructure:"api_password"`
	UseSandbox bool        `mapstructure:"use_sandbox"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// OpenAIConfig 描述概率估计模型的调用参数。
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RiskConfig 管理风控策略参数。
type RiskConfig struct {
	MaxPositionPct       float64 `mapstructure:"max_position_pct"`
	MaxTotalExposurePct  float64 `mapstructure:"max_total_exposure_pct"`
	MaxDailyLossPct      float64 `mapstructure:"max_daily_loss_pct"`
	MaxDrawdownPct       float64 `mapstructure:"max_drawdown_pct"`
	MaxTradesPerHour     int     `mapstructure:"max_trades_per_hour"`
	MinEdgePct           float64 `mapstructure:"min_edge_pct"`
	SlippageTolerancePct float64 `mapstructure:"slippage_tolerance_pct"`
	DailyResetHour       int     `mapstructure:"daily_reset_hour"`
	InitialEquity        float64 `mapstructure:"initial_equity"`
}

// EngineConfig 控制决策引擎的运行参数。
type EngineConfig struct {
	PayoutRatio   float64       `mapstructure:"payout_ratio"`
	HoldingPeriod time.Duration `mapstructure:"holding_period"`
}

// MemoryConfig 控制历史记忆调整。
type MemoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MonitorConfig 控制监控接口。
type MonitorConfig struct {
	HTTPPort int `mapstructure:"http_port"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// SchedulerConfig 控制主循环节奏。
type SchedulerConfig struct {
	LoopInterval time.Duration `mapstructure:"loop_interval"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Exchange.Name == "" {
		err = multierr.Append(err, errors.New("exchange.name 不能为空"))
	}
	if len(c.Exchange.Markets) == 0 {
		err = multierr.Append(err, errors.New("exchange.markets 至少包含一个交易对"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if c.OpenAI.APIKey == "" {
		err = multierr.Append(err, errors.New("openai.api_key 不能为空"))
	}
	if c.OpenAI.Model == "" {
		err = multierr.Append(err, errors.New("openai.model 不能为空"))
	}
	if c.OpenAI.Timeout <= 0 {
		err = multierr.Append(err, errors.New("openai.timeout 必须大于0"))
	}
	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 1 {
		err = multierr.Append(err, errors.New("risk.max_position_pct 必须位于(0,1]"))
	}
	if c.Risk.MaxTotalExposurePct <= 0 || c.Risk.MaxTotalExposurePct > 1 {
		err = multierr.Append(err, errors.New("risk.max_total_exposure_pct 必须位于(0,1]"))
	}
	if c.Risk.MaxPositionPct > c.Risk.MaxTotalExposurePct {
		err = multierr.Append(err, errors.New("risk.max_position_pct 不能大于 max_total_exposure_pct"))
	}
	if c.Risk.MaxDailyLossPct <= 0 || c.Risk.MaxDailyLossPct > 1 {
		err = multierr.Append(err, errors.New("risk.max_daily_loss_pct 必须位于(0,1]"))
	}
	if c.Risk.MaxDrawdownPct <= 0 || c.Risk.MaxDrawdownPct > 1 {
		err = multierr.Append(err, errors.New("risk.max_drawdown_pct 必须位于(0,1]"))
	}
	if c.Risk.MaxTradesPerHour <= 0 {
		err = multierr.Append(err, errors.New("risk.max_trades_per_hour 必须大于0"))
	}
	if c.Risk.MinEdgePct < 0 || c.Risk.MinEdgePct > 0.5 {
		err = multierr.Append(err, errors.New("risk.min_edge_pct 应位于[0,0.5]"))
	}
	if c.Risk.SlippageTolerancePct < 0 || c.Risk.SlippageTolerancePct > 0.2 {
		err = multierr.Append(err, errors.New("risk.slippage_tolerance_pct 应位于[0,0.2]"))
	}
	if c.Risk.DailyResetHour < 0 || c.Risk.DailyResetHour > 23 {
		err = multierr.Append(err, errors.New("risk.daily_reset_hour 必须位于[0,23]"))
	}
	if c.Risk.InitialEquity <= 0 {
		err = multierr.Append(err, errors.New("risk.initial_equity 必须大于0"))
	}
	if c.Engine.PayoutRatio <= 0 {
		err = multierr.Append(err, errors.New("engine.payout_ratio 必须大于0"))
	}
	if c.Engine.HoldingPeriod <= 0 {
		err = multierr.Append(err, errors.New("engine.holding_period 必须大于0"))
	}
	if c.Monitor.HTTPPort < 0 || c.Monitor.HTTPPort > 65535 {
		err = multierr.Append(err, errors.New("monitor.http_port 必须位于[0,65535]"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}
	if c.Scheduler.LoopInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.loop_interval 必须大于0"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
