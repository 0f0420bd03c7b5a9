package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Printer 是格式化输出的处理器。
// 根据 --output 选择 table、json 或 yaml 格式。
type Printer struct {
	format string    // 输出格式：table、json 或 yaml
	writer io.Writer // 输出目标
}

// NewPrinter 创建一个输出到 w 的 Printer，未配置格式时使用 table
func NewPrinter(w io.Writer) *Printer {
	format := viper.GetString("output")
	if format == "" {
		format = "table"
	}
	return &Printer{
		format: format,
		writer: w,
	}
}

// PrintReport 打印校验结果
func (p *Printer) PrintReport(r *validateReport) error {
	switch p.format {
	case "json":
		return p.printJSON(r)
	case "yaml":
		return p.printYAML(r)
	default:
		return p.printReportTable(r)
	}
}

// printJSON 使用 2 空格缩进美化输出
func (p *Printer) printJSON(v interface{}) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) printYAML(v interface{}) error {
	enc := yaml.NewEncoder(p.writer)
	enc.SetIndent(2)
	return enc.Encode(v)
}

// printReportTable 先输出汇总行，再按种类列出记录数
func (p *Printer) printReportTable(r *validateReport) error {
	fmt.Fprintf(p.writer, "checked %d records, %d invalid\n", r.Checked, r.Invalid)
	if len(r.Kinds) == 0 {
		return nil
	}

	kinds := make([]string, 0, len(r.Kinds))
	for k := range r.Kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	w := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tRECORDS")
	for _, k := range kinds {
		fmt.Fprintf(w, "%s\t%d\n", k, r.Kinds[k])
	}
	return w.Flush()
}
