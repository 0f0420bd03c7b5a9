// Package main 是 logdemo 的入口点
// logdemo 是一个输出结构化 JSON 日志的示例 HTTP 服务，用于演示和测试日志收集管道
package main

import (
	"os"

	"github.com/oriys/logdemo/cmd/logdemo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
