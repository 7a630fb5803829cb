package main

import (
	"fmt"
	"os"

	"github.com/d60-Lab/topic-index/cmd/topicctl/commands"
)

// 构建时通过 -ldflags 注入
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
