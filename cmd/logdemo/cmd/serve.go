package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oriys/logdemo/internal/app"
	"github.com/oriys/logdemo/internal/config"
	"github.com/oriys/logdemo/internal/logsink"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd 启动 HTTP 服务和定时发射器，直到收到 SIGINT/SIGTERM
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the log emitting HTTP service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "配置文件路径（不存在时使用默认配置）")
	serveCmd.Flags().Int("port", 0, "HTTP 监听端口，覆盖配置文件（默认 3000）")

	_ = viper.BindPFlag("config", serveCmd.Flags().Lookup("config"))
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// 诊断日志写到 stderr，与记录使用同一格式，整条输出都能被 validate 解析
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logsink.RecordFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.LoadOrDefault(viper.GetString("config"))
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}
	if port := viper.GetInt("port"); port != 0 {
		cfg.Server.HTTPPort = port
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid config")
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logger.WithError(err).Fatal("Invalid log level")
	}
	logger.SetLevel(level)

	// 监听 SIGINT (Ctrl+C) 和 SIGTERM (容器停止) 信号
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize service")
	}

	if err := a.Run(ctx); err != nil {
		logger.WithError(err).Fatal(fmt.Sprintf("Service failed on port %d", cfg.Server.HTTPPort))
	}
	return nil
}
