package app

import (
	"fmt"
	"strconv"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	CommandServe       Command = "serve"
	CommandWorker      Command = "worker"
	CommandMigrate     Command = "migrate"
	CommandHealthcheck Command = "healthcheck" // distrolessイメージのHEALTHCHECK用
)

var knownCommands = map[string]Command{
	"serve":       CommandServe,
	"worker":      CommandWorker,
	"migrate":     CommandMigrate,
	"healthcheck": CommandHealthcheck,
}

// ParseCommand は先頭の引数からサブコマンドを決める。
// 引数なし、または知らない名前ならserveとして扱う。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := knownCommands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}

// MigrateAction は migrate サブコマンドの操作。
type MigrateAction string

const (
	MigrateUp      MigrateAction = "up"
	MigrateDown    MigrateAction = "down"
	MigrateVersion MigrateAction = "version"
)

// MigrateOptions は migrate サブコマンドの引数を解析した結果。
type MigrateOptions struct {
	Action MigrateAction
	Steps  int // down のときだけ使う
}

// ParseMigrateArgs は "migrate" に続く引数を解析する。
//
//	migrate             すべて適用
//	migrate up          すべて適用
//	migrate down [N]    N件（省略時1件）戻す
//	migrate version     現在のバージョンを表示
func ParseMigrateArgs(args []string) (MigrateOptions, error) {
	if len(args) == 0 {
		return MigrateOptions{Action: MigrateUp}, nil
	}

	switch MigrateAction(args[0]) {
	case MigrateUp:
		if len(args) > 1 {
			return MigrateOptions{}, fmt.Errorf("migrate up takes no arguments, got %q", args[1:])
		}
		return MigrateOptions{Action: MigrateUp}, nil
	case MigrateVersion:
		if len(args) > 1 {
			return MigrateOptions{}, fmt.Errorf("migrate version takes no arguments, got %q", args[1:])
		}
		return MigrateOptions{Action: MigrateVersion}, nil
	case MigrateDown:
		opts := MigrateOptions{Action: MigrateDown, Steps: 1}
		switch len(args) {
		case 1:
		case 2:
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return MigrateOptions{}, fmt.Errorf("migrate down: steps must be a positive integer, got %q", args[1])
			}
			opts.Steps = n
		default:
			return MigrateOptions{}, fmt.Errorf("migrate down takes at most one argument, got %q", args[1:])
		}
		return opts, nil
	default:
		return MigrateOptions{}, fmt.Errorf("unknown migrate action %q (want up, down or version)", args[0])
	}
}
