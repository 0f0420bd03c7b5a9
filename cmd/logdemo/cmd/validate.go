package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/oriys/logdemo/internal/domain"
	"github.com/spf13/cobra"
)

// maxLineSize 单行日志的最大长度
const maxLineSize = 1 << 20

// validateCmd 逐行校验 JSON 日志，用于检查日志收集管道的输出
var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check that every line is a valid structured log record",
	Long: `validate 读取 JSON 行（默认从标准输入），检查每行是否为单个 JSON 对象，
timestamp 是否为 ISO-8601 时间，level 是否为 info/warn/error/debug 之一。
存在不合法的行时以非零状态退出。`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()
			in = f
		}

		report, err := validateStream(in, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if err := NewPrinter(cmd.OutOrStdout()).PrintReport(report); err != nil {
			return err
		}
		if report.Invalid > 0 {
			return fmt.Errorf("%d of %d lines are not valid log records", report.Invalid, report.Checked)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// validateReport 校验结果汇总，Kinds 按记录种类计数
type validateReport struct {
	Checked int            `json:"checked" yaml:"checked"`
	Invalid int            `json:"invalid" yaml:"invalid"`
	Kinds   map[string]int `json:"kinds" yaml:"kinds"`
}

// validateStream 校验 r 中的每个非空行，不合法的行写到 errOut
func validateStream(r io.Reader, errOut io.Writer) (*validateReport, error) {
	report := &validateReport{Kinds: make(map[string]int)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		report.Checked++
		rec, err := domain.DecodeRecord([]byte(line))
		if err != nil {
			report.Invalid++
			fmt.Fprintf(errOut, "line %d: %v\n", lineNo, err)
			continue
		}
		report.Kinds[string(rec.Kind)]++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return report, nil
}
