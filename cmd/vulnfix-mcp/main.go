// MCP server exposing the analysis pipeline over stdio
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/seclens/vulnfix-orchestrator/internal/config"
	"github.com/seclens/vulnfix-orchestrator/internal/mcpserver"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	verbose := flag.Bool("verbose", false, "enable debug logging on stderr")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the protocol; logs must go to stderr or nowhere
	logger := zap.NewNop().Sugar()
	if *verbose {
		zcfg := zap.NewDevelopmentConfig()
		zcfg.OutputPaths = []string{"stderr"}
		if l, err := zcfg.Build(); err == nil {
			logger = l.Sugar()
		}
	}

	srv, err := mcpserver.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "starting MCP server: %v\n", err)
		os.Exit(1)
	}

	if err := srv.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "serving: %v\n", err)
		os.Exit(1)
	}
}
