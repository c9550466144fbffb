// Package main 是命令行客户端的入口点
package main

import "fair-review/internal/cli"

func main() {
	cli.Execute()
}
