// Package cmd 包含 logdemo 命令行的所有命令实现
// 使用 cobra 框架构建命令行接口，viper 负责标志与环境变量绑定
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd 是 CLI 的根命令
var rootCmd = &cobra.Command{
	Use:   "logdemo",
	Short: "Sample service that emits structured JSON logs",
	Long: `logdemo 是一个用于演示和测试日志收集管道的 HTTP 服务。

它在 / 、/error 、/warn 三个路由上输出不同级别的 JSON 日志，
并每隔 5 秒输出一条随机级别的定时日志。

使用示例:
  # 在 3000 端口启动服务
  logdemo serve

  # 校验收集到的日志
  logdemo serve 2>&1 | logdemo validate`,
	SilenceUsage: true,
}

// Execute 执行根命令
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table, json, yaml)")
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
}

// initConfig 环境变量格式：LOGDEMO_<KEY>，如 LOGDEMO_PORT
func initConfig() {
	viper.SetEnvPrefix("LOGDEMO")
	viper.AutomaticEnv()
}
