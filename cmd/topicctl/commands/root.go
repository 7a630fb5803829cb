package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionString = "dev"

// NewRootCmd 每次调用返回一棵新的命令树，flag 状态互不影响
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "topicctl",
		Short: "topicctl - 分类主题索引运维工具",
		Long: `topicctl operates on the category topic index stored in Redis.

All commands run as the system actor, so privilege checks are skipped.
Configuration is read the same way as the server (config.yaml, TOPICINDEX_* env).`,
		Version: versionString,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors:      true,
		SilenceUsage:       true,
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
	}
	root.PersistentFlags().String("redis", "", "覆盖配置中的 Redis 地址")

	root.AddCommand(newListCmd(), newCountCmd())
	for _, op := range stateOps {
		root.AddCommand(newStateCmd(op))
	}
	root.AddCommand(newOrderCmd(), newMoveCmd(), newPublishCmd(), newRecountCmd(), newCategoryCmd())
	return root
}

// Execute 供 main 调用
func Execute() error {
	return NewRootCmd().Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	versionString = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
