package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version 是当前版本号
const Version = "0.1.0"

var (
	// 全局配置
	cfgFile string
)

// rootCmd 是根命令
var rootCmd = &cobra.Command{
	Use:   "geodiag",
	Short: "品牌 GEO 诊断引擎",
	Long: `geodiag 是一个品牌 GEO（生成式引擎优化）诊断服务：
向多个 AI 对话平台投放品牌替换后的提问矩阵，清洗、聚合模型回答，
产出品牌曝光、排名与情感的诊断报告。`,
	Version: Version,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yml", "配置文件路径")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
